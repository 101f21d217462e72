package httpmw

import (
	"net/http"

	"github.com/keithlinneman/pasaeventos-api/internal/reqid"
)

// maxRequestIDLen bounds inbound correlation ids; longer or non-printable
// values are replaced rather than propagated into logs.
const maxRequestIDLen = 128

// RequestID honors an inbound correlation header, generates one otherwise,
// stores it on the context and echoes it on the response.
func RequestID(headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = reqid.Header
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerName)
			if !validRequestID(id) {
				id = reqid.New()
			}
			w.Header().Set(headerName, id)
			next.ServeHTTP(w, r.WithContext(reqid.WithID(r.Context(), id)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
