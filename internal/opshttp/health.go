package opshttp

import (
	"net/http"

	"github.com/keithlinneman/pasaeventos-api/internal/health"
)

// HealthzHandler: 200 OK when the check passes, 503 otherwise (with reason)
func HealthzHandler(c health.Check) http.HandlerFunc {
	return checkHandler(c, "ok\n")
}

// ReadyzHandler: 200 OK when the check passes, 503 otherwise (with reason).
// Readiness composes the shutdown gate with the dependency aggregator.
func ReadyzHandler(c health.Check) http.HandlerFunc {
	return checkHandler(c, "ready\n")
}

func checkHandler(c health.Check, okBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c != nil {
			if err := c.Check(r.Context()); err != nil {
				http.Error(w, err.Error()+"\n", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okBody))
	}
}
