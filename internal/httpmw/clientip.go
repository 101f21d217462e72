package httpmw

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions configures how the caller address is derived.
type ClientIPOptions struct {
	// TrustedHops is the number of reverse proxies in front of the API.
	// 0 ignores X-Forwarded-For, 1 takes its rightmost entry (single load
	// balancer), 2 the second from the right, and so on.
	TrustedHops int
}

// ClientIP stores the caller address on the context, trusting no proxies.
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientAddr(r, opts.TrustedHops)
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

// clientAddr resolves the caller address. Forwarded headers are honored only
// when the peer is a private address and hops are configured; in every other
// case they are stripped so nothing downstream trusts them by accident.
func clientAddr(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		return "0.0.0.0"
	}
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil {
		return "0.0.0.0"
	}

	if (!ip.IsPrivate() && !ip.IsLoopback()) || trustedHops <= 0 {
		dropForwarded(r)
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer
	}
	parts := strings.Split(xff, ",")
	idx := len(parts) - trustedHops
	if idx < 0 {
		// fewer entries than proxies: misconfigured or spoofed
		dropForwarded(r)
		return peer
	}
	if candidate := strings.TrimSpace(parts[idx]); net.ParseIP(candidate) != nil {
		return candidate
	}
	return peer
}

func dropForwarded(r *http.Request) {
	r.Header.Del("X-Forwarded-For")
	r.Header.Del("X-Forwarded-Proto")
}

// ClientIPFromContext returns the address stored by ClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}
