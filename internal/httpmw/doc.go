// Package httpmw provides the HTTP middleware for the public API server.
//
// httpserver.NewHandler composes them outermost first: security headers,
// request ID, client IP, request-scoped logger, access log, panic
// recovery, OTel tracing, trace headers, metrics, rate limiting, CORS,
// body size cap, then the chi router.
//
// Middleware that rejects a request (Recover, CORS, MaxBody, and the
// limiter in package ratelimit) never writes its own body: it hands a
// failure value to an [ErrorWriter] so every error response comes out of
// the same classify/format pipeline. Query strings, user agents and other
// caller-controlled headers are kept out of logs.
package httpmw
