package httpmw

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/keithlinneman/pasaeventos-api/internal/apperr"
)

type CORSOptions struct {
	// AllowedOrigins is the exact-match allow-list; "*" allows every origin.
	AllowedOrigins []string
	// AllowNoOrigin admits requests without an Origin header (curl, server
	// to server). Production deployments leave it off unless "*" is listed.
	AllowNoOrigin bool
	// MaxAge caches preflight results, in seconds. 0 omits the header.
	MaxAge int
}

var (
	corsMethods = "GET,POST,PUT,DELETE"
	corsHeaders = "Content-Type,Authorization,X-Request-Id"
)

// CORS enforces the origin allow-list. Allowed origins are echoed back with
// credentials enabled and preflights end with 204; a disallowed origin is
// handed to reject as an *apperr.OriginError.
func CORS(opts CORSOptions, reject ErrorWriter) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	wildcard := false
	for _, o := range opts.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
			continue
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	allowNoOrigin := opts.AllowNoOrigin || wildcard

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin == "" {
				if !allowNoOrigin {
					writeOr500(reject, w, r, &apperr.OriginError{})
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; !ok && !wildcard {
				writeOr500(reject, w, r, &apperr.OriginError{Origin: origin})
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				} else {
					h.Set("Access-Control-Allow-Headers", corsHeaders)
				}
				if opts.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
