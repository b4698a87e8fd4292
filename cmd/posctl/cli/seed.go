package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/suppliers"
)

// ErrAlreadySeeded is returned when the workspace already has products.
var ErrAlreadySeeded = errors.New("seed: workspace already has products")

type seedProduct struct {
	name, sku       string
	cost, price     string
	stock, minStock int
	supplier        int
	moq             int
}

var demoSuppliers = []suppliers.SupplierInput{
	{Name: "Kopi Nusantara", ContactName: "Rina", Phone: "+62 21 555 0101", PaymentTerms: suppliers.TermsNet30, LeadTimeDays: 5},
	{Name: "Sumber Susu", ContactName: "Agus", Phone: "+62 22 555 0202", PaymentTerms: suppliers.TermsCash, LeadTimeDays: 2},
}

var demoProducts = []seedProduct{
	{name: "Arabica beans 1kg", sku: "COF-ARA-1K", cost: "120000", price: "165000", stock: 12, minStock: 5, supplier: 0, moq: 10},
	{name: "Robusta beans 1kg", sku: "COF-ROB-1K", cost: "85000", price: "120000", stock: 3, minStock: 5, supplier: 0, moq: 10},
	{name: "Fresh milk 1L", sku: "MLK-FRS-1L", cost: "18000", price: "24000", stock: 30, minStock: 20, supplier: 1},
	{name: "Oat milk 1L", sku: "MLK-OAT-1L", cost: "32000", price: "45000", stock: 0, minStock: 6, supplier: 1, moq: 12},
}

// Seeder loads a demo catalog into a fresh terminal.
type Seeder struct {
	Inventory *inventory.Service
	Suppliers *suppliers.Service
}

// SeedResult counts the created documents.
type SeedResult struct {
	Suppliers int
	Products  int
	Links     int
}

// Seed creates demo suppliers, products and preferred supplier links.
func (s Seeder) Seed(ctx context.Context, workspaceID string) (SeedResult, error) {
	var res SeedResult
	existing, err := s.Inventory.ListProducts(ctx, workspaceID)
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		return res, ErrAlreadySeeded
	}
	supplierIDs := make([]string, 0, len(demoSuppliers))
	for _, in := range demoSuppliers {
		in.WorkspaceID = workspaceID
		sup, err := s.Suppliers.CreateSupplier(ctx, in)
		if err != nil {
			return res, fmt.Errorf("seed supplier %s: %w", in.Name, err)
		}
		supplierIDs = append(supplierIDs, sup.ID)
		res.Suppliers++
	}
	for _, p := range demoProducts {
		cost := decimal.RequireFromString(p.cost)
		product, err := s.Inventory.UpsertProduct(ctx, inventory.ProductInput{
			WorkspaceID:   workspaceID,
			Name:          p.name,
			SKU:           p.sku,
			CostPrice:     cost,
			SalePrice:     decimal.RequireFromString(p.price),
			StockQuantity: p.stock,
			MinStockLevel: p.minStock,
		})
		if err != nil {
			return res, fmt.Errorf("seed product %s: %w", p.sku, err)
		}
		res.Products++
		if _, err := s.Suppliers.LinkProduct(ctx, suppliers.LinkInput{
			WorkspaceID:      workspaceID,
			ProductID:        product.ID,
			SupplierID:       supplierIDs[p.supplier],
			CostPrice:        cost,
			IsPreferred:      true,
			MinOrderQuantity: p.moq,
			SupplierSKU:      p.sku,
		}); err != nil {
			return res, fmt.Errorf("seed link %s: %w", p.sku, err)
		}
		res.Links++
	}
	return res, nil
}

// SeedCommand runs the seeder and returns the exit code.
func (s Seeder) SeedCommand(ctx context.Context, workspaceID string, stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	res, err := s.Seed(ctx, workspaceID)
	if errors.Is(err, ErrAlreadySeeded) {
		_, _ = fmt.Fprintln(stdout, "→ workspace already seeded, nothing to do")
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "seed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "→ seeded %d suppliers, %d products, %d supplier links\n", res.Suppliers, res.Products, res.Links)
	return 0
}
