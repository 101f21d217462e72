package healthhttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/pasaeventos-api/internal/health"
	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
)

// Reporter produces the per-dependency health report.
type Reporter interface {
	Check(ctx context.Context) health.Report
}

// API implements httpserver.RouteRegistrar for the public health endpoint.
type API struct {
	Reporter Reporter
	// OnDegraded is called when at least one dependency is down.
	OnDegraded func(failing []string)
}

// NewAPI constructs a health API.
func NewAPI(r Reporter) *API {
	return &API{Reporter: r}
}

// RegisterRoutes attaches GET /health to the main chi router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("health")).Get("/health", api.serveHealth)
}

// serveHealth always answers 200; callers read per-dependency status from
// the body. Readiness for load balancers lives on the ops port.
func (api *API) serveHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report := health.Report{}
	if api.Reporter != nil {
		report = api.Reporter.Check(ctx)
	}

	if failing := report.Failing(); len(failing) > 0 {
		log.FromContext(ctx).Warn(ctx, "health check degraded", "failing", failing)
		if api.OnDegraded != nil {
			api.OnDegraded(failing)
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}
