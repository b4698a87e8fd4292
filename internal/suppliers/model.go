package suppliers

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

const (
	Collection      = "suppliers"
	LinksCollection = "product_suppliers"
)

// PaymentTerms agreed with a supplier.
type PaymentTerms string

const (
	TermsCash  PaymentTerms = "cash"
	TermsNet15 PaymentTerms = "net15"
	TermsNet30 PaymentTerms = "net30"
	TermsNet60 PaymentTerms = "net60"
)

// Supplier represents a vendor. Suppliers are deactivated rather than
// deleted.
type Supplier struct {
	docstore.Record
	Name         string       `json:"name"`
	ContactName  string       `json:"contact_name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	PaymentTerms PaymentTerms `json:"payment_terms"`
	LeadTimeDays int          `json:"lead_time_days"`
	IsActive     bool         `json:"is_active"`
	Notes        string       `json:"notes,omitempty"`
}

// ProductSupplier links a product to one of its suppliers.
type ProductSupplier struct {
	docstore.Record
	ProductID        string          `json:"product_id"`
	SupplierID       string          `json:"supplier_id"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	IsPreferred      bool            `json:"is_preferred"`
	MinOrderQuantity int             `json:"min_order_quantity"`
	SupplierSKU      string          `json:"supplier_sku,omitempty"`
}

type SupplierInput struct {
	WorkspaceID  string
	Name         string
	ContactName  string
	Email        string
	Phone        string
	Address      string
	PaymentTerms PaymentTerms
	LeadTimeDays int
	Notes        string
}

type LinkInput struct {
	WorkspaceID      string
	ProductID        string
	SupplierID       string
	CostPrice        decimal.Decimal
	IsPreferred      bool
	MinOrderQuantity int
	SupplierSKU      string
}

// PurchaseSummary is the purchase-order side of a supplier's stats.
type PurchaseSummary struct {
	OrderCount int
	TotalSpend decimal.Decimal
}

// Stats aggregates a supplier's catalogue and purchasing.
type Stats struct {
	SupplierID         string          `json:"supplier_id"`
	ProductCount       int             `json:"product_count"`
	PurchaseOrderCount int             `json:"purchase_order_count"`
	TotalSpend         decimal.Decimal `json:"total_spend"`
}

var (
	ErrSupplierNotFound = errors.New("suppliers: supplier not found")
	ErrLinkNotFound     = errors.New("suppliers: product supplier link not found")
	ErrInvalidTerms     = errors.New("suppliers: unknown payment terms")
)
