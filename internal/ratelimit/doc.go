// Package ratelimit is per-IP request rate limiting for a single instance.
//
// Each client IP gets a token bucket (60 requests per minute by default);
// idle entries are evicted in the background and the number of tracked IPs
// is capped so a flood of spoofed sources cannot grow the map without
// bound. State is in-memory and not shared between replicas, so this is a
// backstop behind upstream limits rather than a replacement for them.
//
// Denied requests are answered through the error pipeline (an
// [httpmw.ErrorWriter]) and therefore share the API's error body.
package ratelimit
