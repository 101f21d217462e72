package httpmw

import "net/http"

// ErrorWriter renders a failure value as the HTTP response. The error
// pipeline's Responder.Respond satisfies it.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, failure any)

// Chain wraps h so that mws[0] is outermost. nil entries are skipped.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

func writeOr500(respond ErrorWriter, w http.ResponseWriter, r *http.Request, failure any) {
	if respond == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	respond(w, r, failure)
}
