package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analytichttp "github.com/meridian-crm/meridian/internal/analytics/http"
	"github.com/meridian-crm/meridian/internal/clients"
	"github.com/meridian-crm/meridian/internal/invoices"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/opportunities"
	"github.com/meridian-crm/meridian/internal/tickets"
	"github.com/meridian-crm/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	ClientHandler        *clients.Handler
	OpportunityHandler   *opportunities.Handler
	TicketHandler        *tickets.Handler
	InvoiceHandler       *invoices.Handler
	AnalyticsHandler     *analytichttp.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
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

	r.Route("/api", func(api chi.Router) {
		if params.ClientHandler != nil {
			api.Route("/clients", params.ClientHandler.MountRoutes)
		}
		if params.OpportunityHandler != nil {
			api.Route("/opportunities", params.OpportunityHandler.MountRoutes)
		}
		if params.TicketHandler != nil {
			api.Route("/tickets", params.TicketHandler.MountRoutes)
		}
		if params.InvoiceHandler != nil {
			api.Route("/invoices", params.InvoiceHandler.MountRoutes)
		}
		if params.AnalyticsHandler != nil {
			api.Route("/analytics", params.AnalyticsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
