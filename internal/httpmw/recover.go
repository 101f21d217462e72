package httpmw

import (
	"fmt"
	"net/http"

	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// Recover turns a handler panic into an error response. Error panics get a
// stack attached; any other value is handed to respond as-is. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func Recover(L log.Logger, onPanic func(), respond ErrorWriter) func(http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				if onPanic != nil {
					onPanic()
				}

				failure := v
				if err, ok := v.(error); ok {
					failure = xerrors.EnsureTrace(err)
				}
				ctx := r.Context()
				log.FromContextOr(ctx, L).Warn(ctx, "panic recovered",
					"panic", fmt.Sprint(v),
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				)
				writeOr500(respond, w, r, failure)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
