package suppliers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type stubHistory struct {
	summaries map[string]PurchaseSummary
}

func (s stubHistory) PurchaseSummary(_ context.Context, supplierID string) (PurchaseSummary, error) {
	return s.summaries[supplierID], nil
}

func newService(t *testing.T) (*Service, inventory.Product, inventory.Product) {
	t.Helper()
	store := docstore.NewMemory()
	inv := inventory.NewService(inventory.NewRepository(store), nil)
	a, err := inv.UpsertProduct(context.Background(), inventory.ProductInput{WorkspaceID: "ws", Name: "Flour"})
	require.NoError(t, err)
	b, err := inv.UpsertProduct(context.Background(), inventory.ProductInput{WorkspaceID: "ws", Name: "Sugar"})
	require.NoError(t, err)
	return NewService(NewRepository(store)), a, b
}

func mustSupplier(t *testing.T, svc *Service, name string) Supplier {
	t.Helper()
	sup, err := svc.CreateSupplier(context.Background(), SupplierInput{WorkspaceID: "ws", Name: name, PaymentTerms: TermsNet30, LeadTimeDays: 3})
	require.NoError(t, err)
	return sup
}

func TestSupplierLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.CreateSupplier(ctx, SupplierInput{WorkspaceID: "ws", Name: ""})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateSupplier(ctx, SupplierInput{WorkspaceID: "ws", Name: "X", PaymentTerms: "net90"})
	require.ErrorIs(t, err, ErrInvalidTerms)

	sup := mustSupplier(t, svc, "Mill Co")
	require.True(t, sup.IsActive)
	other := mustSupplier(t, svc, "Cane Ltd")

	updated, err := svc.UpdateSupplier(ctx, sup.ID, SupplierInput{WorkspaceID: "ws", Name: "Mill & Co", LeadTimeDays: 5})
	require.NoError(t, err)
	require.Equal(t, "Mill & Co", updated.Name)
	require.Equal(t, TermsNet30, updated.PaymentTerms)

	_, err = svc.DeactivateSupplier(ctx, other.ID)
	require.NoError(t, err)
	active, err := svc.ListSuppliers(ctx, "ws", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := svc.ListSuppliers(ctx, "ws", false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, svc.DeleteSupplier(ctx, other.ID))
	_, err = svc.GetSupplier(ctx, other.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	all, err = svc.ListSuppliers(ctx, "ws", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPreferredSupplierSelection(t *testing.T) {
	ctx := context.Background()
	svc, flour, _ := newService(t)
	first := mustSupplier(t, svc, "First")
	second := mustSupplier(t, svc, "Second")

	_, _, err := svc.GetPreferredSupplier(ctx, flour.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.LinkProduct(ctx, LinkInput{ProductID: flour.ID, SupplierID: first.ID, CostPrice: decimal.NewFromInt(3)})
	require.NoError(t, err)
	_, err = svc.LinkProduct(ctx, LinkInput{ProductID: flour.ID, SupplierID: second.ID, CostPrice: decimal.NewFromInt(4), MinOrderQuantity: 12})
	require.NoError(t, err)

	link, sup, err := svc.GetPreferredSupplier(ctx, flour.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, sup.ID)
	require.Equal(t, first.ID, link.SupplierID)

	_, err = svc.LinkProduct(ctx, LinkInput{ProductID: flour.ID, SupplierID: second.ID, CostPrice: decimal.NewFromInt(4), IsPreferred: true, MinOrderQuantity: 12})
	require.NoError(t, err)
	link, sup, err = svc.GetPreferredSupplier(ctx, flour.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, sup.ID)
	require.Equal(t, 12, link.MinOrderQuantity)

	_, err = svc.LinkProduct(ctx, LinkInput{ProductID: flour.ID, SupplierID: first.ID, CostPrice: decimal.NewFromInt(3), IsPreferred: true})
	require.NoError(t, err)
	links, err := svc.GetProductSuppliers(ctx, flour.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	preferred := 0
	for _, l := range links {
		if l.IsPreferred {
			preferred++
			require.Equal(t, first.ID, l.SupplierID)
		}
	}
	require.Equal(t, 1, preferred)

	_, err = svc.DeactivateSupplier(ctx, first.ID)
	require.NoError(t, err)
	_, sup, err = svc.GetPreferredSupplier(ctx, flour.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, sup.ID)

	require.NoError(t, svc.UnlinkProduct(ctx, flour.ID, second.ID))
	require.ErrorIs(t, svc.UnlinkProduct(ctx, flour.ID, second.ID), shared.ErrNotFound)

	_, err = svc.LinkProduct(ctx, LinkInput{ProductID: "missing", SupplierID: second.ID})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSupplierStats(t *testing.T) {
	ctx := context.Background()
	svc, flour, sugar := newService(t)
	sup := mustSupplier(t, svc, "Pantry")
	for _, p := range []inventory.Product{flour, sugar} {
		_, err := svc.LinkProduct(ctx, LinkInput{ProductID: p.ID, SupplierID: sup.ID})
		require.NoError(t, err)
	}
	svc.SetPurchaseHistory(stubHistory{summaries: map[string]PurchaseSummary{
		sup.ID: {OrderCount: 2, TotalSpend: decimal.RequireFromString("180.50")},
	}})

	stats, err := svc.GetSupplierStats(ctx, sup.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.ProductCount)
	require.Equal(t, 2, stats.PurchaseOrderCount)
	require.True(t, stats.TotalSpend.Equal(decimal.RequireFromString("180.50")))
}

func TestHandlerCreateAndValidate(t *testing.T) {
	svc, _, _ := newService(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, "ws")
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme","payment_terms":"net15"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Supplier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, TermsNet15, created.PaymentTerms)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme","payment_terms":"net99"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
