package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/pasaeventos-api/internal/apperr"
	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/reqid"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// NewHandler builds an HTTP handler with routes + middleware
// main() owns *http.Server so it can do graceful shutdown
func NewHandler(opts *Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	responder := opts.Responder
	if responder == nil {
		responder = &apperr.Responder{Mode: opts.Mode, Logger: opts.Logger}
	}

	// chi router
	r := chi.NewRouter()

	// Compress JSON and the docs page
	r.Use(middleware.Compress(5, "application/json", "text/html"))

	// Annotate tracer with http.route from chi route pattern if trace is recording
	r.Use(httpmw.AnnotateHTTPRoute)

	for _, reg := range opts.Routes {
		if reg != nil {
			reg.RegisterRoutes(r)
		}
	}

	// unmatched routes and methods go through the error pipeline as JSON
	r.NotFound(responder.NotFound)
	r.MethodNotAllowed(responder.NotFound)

	// Middleware (outermost first in wrapping order)
	var h http.Handler = r

	h = httpmw.MaxBody(opts.MaxBodyBytes, responder.Respond)(h)

	// CORS inside the limiter so rejected origins still count against it
	if opts.CORS != nil {
		h = httpmw.CORS(*opts.CORS, responder.Respond)(h)
	}

	// Rate limiting (after client IP mw so it uses resolved IP)
	if opts.RateLimitMW != nil {
		h = opts.RateLimitMW(h)
	}

	// Metrics middleware for prometheus instrumentation
	if opts.MetricsMW != nil {
		h = opts.MetricsMW(h)
	}

	// add trace-id headers to any requests with a recording trace
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(
		h,
		"http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// preflights and favicon probes are noise
			return r.Method != http.MethodOptions && r.URL.Path != "/favicon.ico"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			// AnnotateHTTPRoute will rename the span later to the final route pattern
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(r *http.Request) bool { return true }),
	)

	// Recovery middleware turns panics into an Unhandled 500 through the
	// error pipeline; inside the access log so the 500 is logged
	if opts.UseRecoverMW {
		h = httpmw.Recover(opts.Logger, opts.OnPanic, responder.Respond)(h)
	}

	h = httpmw.AccessLog()(h)

	// Request-scoped logging
	h = httpmw.WithLogger(opts.Logger)(h)

	// Client IP resolution (must be before rate limiter and logging in middleware chain)
	h = httpmw.ClientIPWithOptions(opts.ClientIPOpts)(h)

	// Request ID (outer so everything downstream sees it)
	h = httpmw.RequestID(reqid.Header)(h)

	// Security headers outermost to ensure they are served on every response
	h = httpmw.SecurityHeaders(opts.HSTS)(h)

	return h
}

// Server timeout defaults. WriteTimeout leaves room for a full round of
// dependency probes on /health.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start public HTTP server
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	port := opts.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)

	handler := NewHandler(opts)
	srv := NewServer(addr, handler)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen on %s", addr)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr, "mode", opts.Mode.String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			retErr = srv.Shutdown(sctx)
		})
		return retErr
	}
	return stop, nil
}
