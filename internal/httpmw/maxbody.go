package httpmw

import (
	"net/http"

	"github.com/keithlinneman/pasaeventos-api/internal/apperr"
)

// MaxBody caps request bodies at limit bytes. A declared Content-Length
// over the cap is rejected up front with 413; otherwise the body reader
// fails once the cap is crossed.
func MaxBody(limit int64, respond ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				writeOr500(respond, w, r, apperr.New(http.StatusRequestEntityTooLarge, "Request body too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
