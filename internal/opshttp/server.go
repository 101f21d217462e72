package opshttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// Start admin HTTP server with /metrics, /-/healthy, /-/ready, pprof debug endpoints
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, L log.Logger, opts Options) (func(context.Context) error, error) {
	if L == nil {
		L = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = 9090
	}
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(L, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// pprof profile/trace stream for up to 30s by default
		WriteTimeout:   45 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "could not listen for admin port on addr=%v", addr)
	}

	go func() {
		L.Info(ctx, "ops http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}

func newHandler(L log.Logger, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/-/healthy", HealthzHandler(opts.Health))
	mux.Handle("/-/ready", ReadyzHandler(opts.Readiness))

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	// pprof (or shadow with 404s)
	if opts.EnablePprof {
		RegisterPprof(mux)
	} else {
		mux.HandleFunc("/debug/pprof/", http.NotFound)
	}

	var h http.Handler = mux
	if !opts.AllowPublic {
		h = requireNonPublicNetwork(L, h)
	}
	if opts.UseRecoverMW {
		h = httpmw.Recover(L, opts.OnPanic, nil)(h)
	}
	return h
}

// requireNonPublicNetwork rejects peers outside loopback, private and
// link-local ranges. The ops port is never meant to face the internet.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		ip := net.ParseIP(host)
		if err != nil || ip == nil || !nonPublic(ip) {
			L.Warn(r.Context(), "ops request from public network rejected",
				"network.peer.address", r.RemoteAddr,
				"url.path", r.URL.Path,
			)
			http.Error(w, "forbidden\n", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func nonPublic(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
