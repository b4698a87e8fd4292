package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-pos/internal/giftcards"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/layaway"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/procurement"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/suppliers"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// DomainHandlers groups the per-domain JSON handlers.
type DomainHandlers struct {
	Inventory   *inventory.Handler
	Sales       *sales.Handler
	Layaways    *layaway.Handler
	Procurement *procurement.Handler
	GiftCards   *giftcards.Handler
	Suppliers   *suppliers.Handler
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Handlers   DomainHandlers
	Sync       *syncer.Handler
	Audit      *AuditHandler
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with terminal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	h := params.Handlers
	if h.Inventory != nil {
		r.Route("/inventory", h.Inventory.MountRoutes)
	}
	if h.Sales != nil {
		r.Route("/sales", h.Sales.MountRoutes)
	}
	if h.Layaways != nil {
		r.Route("/layaways", h.Layaways.MountRoutes)
	}
	if h.Procurement != nil {
		r.Route("/procurement", h.Procurement.MountRoutes)
	}
	if h.GiftCards != nil {
		r.Route("/giftcards", h.GiftCards.MountRoutes)
	}
	if h.Suppliers != nil {
		r.Route("/suppliers", h.Suppliers.MountRoutes)
	}
	if params.Sync != nil {
		r.Route("/sync", params.Sync.MountRoutes)
	}
	if params.Audit != nil {
		r.Route("/audit", params.Audit.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	return r
}
