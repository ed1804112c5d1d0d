package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/verdant-pos/verdant-pos/internal/bulkops"
	"github.com/verdant-pos/verdant-pos/internal/ledger"
	"github.com/verdant-pos/verdant-pos/internal/observability"
	"github.com/verdant-pos/verdant-pos/internal/payments"
	"github.com/verdant-pos/verdant-pos/internal/pos"
	"github.com/verdant-pos/verdant-pos/jobs"
	"github.com/verdant-pos/verdant-pos/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthMiddleware  func(http.Handler) http.Handler
	LedgerHandler   *ledger.Handler
	BulkOpsHandler  *bulkops.Handler
	PaymentsHandler *payments.Handler
	POSHandler      *pos.Handler
	ReportHandler   *report.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Verdant defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	// Everything below requires a verified vendor identity.
	r.Group(func(r chi.Router) {
		if params.AuthMiddleware != nil {
			r.Use(params.AuthMiddleware)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.BulkOpsHandler != nil {
			params.BulkOpsHandler.MountRoutes(r)
		}
		r.Route("/pos", func(r chi.Router) {
			if params.PaymentsHandler != nil {
				params.PaymentsHandler.MountRoutes(r)
			}
			if params.POSHandler != nil {
				params.POSHandler.MountRoutes(r)
			}
			if params.ReportHandler != nil {
				params.ReportHandler.MountRoutes(r)
			}
		})
	})

	return r
}
