package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Collection names in the local and remote stores.
const (
	Collection      = "sales"
	ItemsCollection = "sale_items"
)

// Status of a sale.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusVoided    Status = "voided"
)

// Sale is a completed transaction. Items are nested and carry snapshots of
// the product at the time of sale.
type Sale struct {
	docstore.Record
	UserID        string          `json:"user_id,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Items         []SaleItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

// SaleItem snapshots product name, cost and price. Snapshots are never
// updated after the sale.
type SaleItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ItemInput is one requested sale line. UnitPrice defaults to the product's
// sale price.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
	Discount  decimal.Decimal
}

// CreateInput describes a sale to ring up.
type CreateInput struct {
	WorkspaceID   string
	UserID        string
	CustomerID    string
	Items         []ItemInput
	PaymentMethod string
	Notes         string
}

// ListFilter bounds ListSales. Zero times are open bounds.
type ListFilter struct {
	WorkspaceID string
	From        time.Time
	To          time.Time
}

var (
	// ErrSaleNotFound indicates a missing or deleted sale.
	ErrSaleNotFound = errors.New("sales: sale not found")
	// ErrNoItems indicates a sale without lines.
	ErrNoItems = errors.New("sales: at least one item required")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("sales: quantity must be positive")
	// ErrInvalidDiscount indicates a negative discount or one above the line amount.
	ErrInvalidDiscount = errors.New("sales: invalid discount")
	// ErrInsufficientStock indicates the sale would take stock below zero.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
	// ErrNotCompleted indicates a refund or void of a closed sale.
	ErrNotCompleted = errors.New("sales: sale is not completed")
)
