package apperr

import (
	"encoding/json"
	"net/http"

	"github.com/keithlinneman/pasaeventos-api/internal/appenv"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
)

// Responder is the single HTTP sink for failures.
type Responder struct {
	Mode appenv.Mode
	// Logger is used when the request context carries none.
	Logger log.Logger
	// OnError, if set, observes every record (metrics).
	OnError func(Record)
}

// Respond classifies failure and writes the formatted JSON response.
func (rs *Responder) Respond(w http.ResponseWriter, r *http.Request, failure any) {
	ctx := r.Context()
	rec := classify(ctx, log.FromContextOr(ctx, rs.Logger), failure, rs.Mode)
	if rs.OnError != nil {
		rs.OnError(rec)
	}
	resp := Format(rec, rs.Mode)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(resp.Status)
	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		log.FromContextOr(ctx, rs.Logger).Warn(ctx, "write error response failed", "err", err)
	}
}

// NotFound answers an unmatched route through the same pipeline.
func (rs *Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.Respond(w, r, NotFound(r.URL.RequestURI()))
}
