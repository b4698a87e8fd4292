package app

import (
	"log/slog"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/giftcards"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/layaway"
	"github.com/odyssey-erp/odyssey-pos/internal/procurement"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/suppliers"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
)

// Services holds the domain services of one terminal, all sharing a store.
type Services struct {
	Store       docstore.Store
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
	Inventory   *inventory.Service
	Sales       *sales.Service
	Layaways    *layaway.Service
	Procurement *procurement.Service
	GiftCards   *giftcards.Service
	Suppliers   *suppliers.Service
}

// NewServices wires every domain service against store.
func NewServices(store docstore.Store, cfg *Config) *Services {
	audit := shared.NewAuditLogger(store)

	supplierSvc := suppliers.NewService(suppliers.NewRepository(store))
	procurementSvc := procurement.NewService(procurement.NewRepository(store), supplierSvc, audit, cfg.TaxRate)
	supplierSvc.SetPurchaseHistory(procurementSvc)

	return &Services{
		Store:       store,
		Audit:       audit,
		Idempotency: shared.NewIdempotencyStore(store),
		Inventory:   inventory.NewService(inventory.NewRepository(store), audit),
		Sales: sales.NewService(sales.NewRepository(store), sales.ServiceConfig{
			TaxRate:            cfg.TaxRate,
			AllowNegativeStock: cfg.AllowNegativeStock,
		}),
		Layaways: layaway.NewService(layaway.NewRepository(store), audit, layaway.ServiceConfig{
			TaxRate:                     cfg.TaxRate,
			MinDepositPercent:           cfg.LayawayMinDepositPercent,
			DefaultRestockingFeePercent: cfg.LayawayRestockingFeePercent,
		}),
		Procurement: procurementSvc,
		GiftCards:   giftcards.NewService(giftcards.NewRepository(store), audit),
		Suppliers:   supplierSvc,
	}
}

// SyncPlan lists what the engine pulls and, in order, what it pushes. Pulled
// products go through the stock ledger so reconciliation keeps holding. Sales
// and their movements go first so the remote ledger never references a
// missing sale.
func SyncPlan() (pull []syncer.PullSpec, push []syncer.PushSpec) {
	pull = []syncer.PullSpec{
		{Collection: inventory.ProductsCollection, Apply: inventory.ApplyPulledProduct},
	}
	push = []syncer.PushSpec{
		{Collection: sales.Collection, Split: sales.RemoteWrites},
		{Collection: inventory.MovementsCollection, Split: syncer.SingleRow(inventory.MovementsCollection)},
		{Collection: layaway.Collection, Split: syncer.SingleRow(layaway.Collection)},
		{Collection: procurement.Collection, Split: syncer.SingleRow(procurement.Collection)},
		{Collection: giftcards.Collection, Split: syncer.SingleRow(giftcards.Collection)},
		{Collection: suppliers.Collection, Split: syncer.SingleRow(suppliers.Collection)},
		{Collection: suppliers.LinksCollection, Split: syncer.SingleRow(suppliers.LinksCollection)},
	}
	return pull, push
}

// EngineConfig derives the sync engine settings from cfg.
func EngineConfig(cfg *Config) syncer.EngineConfig {
	pull, push := SyncPlan()
	return syncer.EngineConfig{
		Interval:     cfg.SyncInterval,
		CallTimeout:  cfg.RemoteTimeout,
		PushAttempts: cfg.SyncPushAttempts,
		RetryBackoff: cfg.SyncRetryBackoff,
		Pull:         pull,
		Push:         push,
	}
}

// Handlers builds the HTTP handlers of every domain.
func (s *Services) Handlers(logger *slog.Logger, workspaceID string) DomainHandlers {
	return DomainHandlers{
		Inventory:   inventory.NewHandler(logger, s.Inventory, workspaceID),
		Sales:       sales.NewHandler(logger, s.Sales, s.Idempotency, workspaceID),
		Layaways:    layaway.NewHandler(logger, s.Layaways, workspaceID),
		Procurement: procurement.NewHandler(logger, s.Procurement, workspaceID),
		GiftCards:   giftcards.NewHandler(logger, s.GiftCards, workspaceID),
		Suppliers:   suppliers.NewHandler(logger, s.Suppliers, workspaceID),
	}
}
