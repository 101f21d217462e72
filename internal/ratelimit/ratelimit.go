package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/pasaeventos-api/internal/apperr"
	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
)

// visitor is one client's bucket.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// logged flips on the first denial; reset when the entry is evicted
	logged bool
}

// IPLimiter keeps a token bucket per client IP with background eviction.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	perSecond rate.Limit
	burst     int
	ttl       time.Duration

	// maxVisitors caps tracked IPs; new IPs are denied once reached. 0 = no cap.
	maxVisitors   int
	capacityFired bool

	OnFirstDenied func(ip string)
	OnDenied      func(ip string)
	OnCapacity    func()

	respond httpmw.ErrorWriter
}

type Option func(*IPLimiter)

// WithRate sets the refill rate and bucket size.
// WithRate(10, 50) allows 50 requests at once, then 10 per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithWindow allows max requests per window, expressed as a bucket of max
// tokens refilled evenly over the window.
func WithWindow(max int, window time.Duration) Option {
	return func(l *IPLimiter) {
		if max <= 0 || window <= 0 {
			return
		}
		l.perSecond = rate.Limit(float64(max) / window.Seconds())
		l.burst = max
	}
}

// WithTTL sets how long an idle IP stays tracked.
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) { l.ttl = d }
}

func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) { l.maxVisitors = n }
}

// WithOnFirstDenied fires once per visitor on its first denial (logging).
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.OnFirstDenied = fn }
}

// WithOnDenied fires on every denial (metrics).
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.OnDenied = fn }
}

// WithOnCapacity fires the first time the visitor cap turns away a new IP,
// and again after eviction brings the map back under the cap.
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) { l.OnCapacity = fn }
}

// WithErrorWriter routes denials through the error pipeline.
func WithErrorWriter(fn httpmw.ErrorWriter) Option {
	return func(l *IPLimiter) { l.respond = fn }
}

// New creates an IPLimiter; eviction runs until ctx is done. Defaults to
// 60 requests per minute per IP.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		perSecond:   1,
		burst:       60,
		ttl:         5 * time.Minute,
		maxVisitors: 100000,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// allow reports whether ip may proceed. Hooks run outside the lock.
func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			fire := !l.capacityFired
			l.capacityFired = true
			l.mu.Unlock()
			if fire && l.OnCapacity != nil {
				l.OnCapacity()
			}
			if l.OnDenied != nil {
				l.OnDenied(ip)
			}
			return false
		}
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	allowed := v.limiter.Allow()
	first := !allowed && !v.logged
	if first {
		v.logged = true
	}
	l.mu.Unlock()

	if first && l.OnFirstDenied != nil {
		l.OnFirstDenied(ip)
	}
	if !allowed && l.OnDenied != nil {
		l.OnDenied(ip)
	}
	return allowed
}

// cleanup evicts idle visitors every ttl/2.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if now.Sub(v.lastSeen) > l.ttl {
					delete(l.visitors, ip)
				}
			}
			if l.maxVisitors == 0 || len(l.visitors) < l.maxVisitors {
				l.capacityFired = false
			}
			l.mu.Unlock()
		}
	}
}

// Middleware denies requests over the per-IP limit with 429. The client IP
// comes from httpmw.ClientIP, which must run first.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httpmw.ClientIPFromContext(r.Context())
		w.Header().Set("RateLimit-Limit", limit)

		if !l.allow(ip) {
			w.Header().Set("Retry-After", "60")
			// no remaining budget or refill detail in the body
			failure := apperr.New(http.StatusTooManyRequests, "rate limit exceeded")
			if l.respond == nil {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			l.respond(w, r, failure)
			return
		}
		next.ServeHTTP(w, r)
	})
}
