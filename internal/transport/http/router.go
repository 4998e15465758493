// Package httptransport mounts the HTTP surface: check and bulk endpoints
// behind bearer auth, plus unauthenticated health and metrics.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eligibility/pkg/platform/httputil"
)

// HealthCheck probes one dependency. Registered per collaborator so the
// health endpoint reports which one is down.
type HealthCheck func(ctx context.Context) error

type RouterDeps struct {
	Checks        *CheckHandler
	Bulk          *BulkHandler
	JWTSigningKey string
	HealthChecks  map[string]HealthCheck
	Logger        *zap.Logger
}

// NewRouter assembles the full HTTP handler tree.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(deps.Logger))

	r.Get("/healthz", healthHandler(deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.JWTSigningKey, deps.Logger))
		deps.Checks.Register(r)
		deps.Bulk.Register(r)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
