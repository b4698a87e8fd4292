package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Collections owned by the inventory package.
const (
	ProductsCollection  = "products"
	MovementsCollection = "stock_movements"
)

// Reason classifies a stock movement.
type Reason string

const (
	// ReasonSale is stock leaving with a sale.
	ReasonSale Reason = "sale"
	// ReasonRestock is stock received from a supplier.
	ReasonRestock Reason = "restock"
	// ReasonWaste is damaged or expired stock written off.
	ReasonWaste Reason = "waste"
	// ReasonCorrection covers manual corrections and layaway reservations.
	ReasonCorrection Reason = "correction"
	// ReasonReturn is stock coming back from a customer or a cancelled reservation.
	ReasonReturn Reason = "return"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonSale, ReasonRestock, ReasonWaste, ReasonCorrection, ReasonReturn:
		return true
	}
	return false
}

// Product is a sellable, stockable item. StockQuantity only changes through
// ApplyMovement.
type Product struct {
	docstore.Record
	Name            string          `json:"name"`
	Barcode         string          `json:"barcode,omitempty"`
	SKU             string          `json:"sku,omitempty"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	StockQuantity   int             `json:"stock_quantity"`
	MinStockLevel   int             `json:"min_stock_level"`
	OpeningQuantity int             `json:"opening_quantity"`
}

// StockMovement is an append-only ledger row. CreatedAt is the movement time.
type StockMovement struct {
	docstore.Record
	ProductID        string `json:"product_id"`
	QuantityChange   int    `json:"quantity_change"`
	QuantityAfter    int    `json:"quantity_after"`
	Reason           Reason `json:"reason"`
	ReferenceType    string `json:"reference_type,omitempty"`
	ReferenceID      string `json:"reference_id,omitempty"`
	AdjustmentReason string `json:"adjustment_reason,omitempty"`
	Notes            string `json:"notes,omitempty"`
	UserID           string `json:"user_id,omitempty"`
}

// MovementInput describes one stock delta.
type MovementInput struct {
	WorkspaceID      string
	ProductID        string
	Delta            int
	Reason           Reason
	ReferenceType    string
	ReferenceID      string
	AdjustmentReason string
	Notes            string
	UserID           string
	// UnitCost, when set, replaces the product's cost price.
	UnitCost *decimal.Decimal
}

// ProductInput creates or edits catalog fields of a product.
type ProductInput struct {
	ID            string
	WorkspaceID   string
	Name          string
	Barcode       string
	SKU           string
	CostPrice     decimal.Decimal
	SalePrice     decimal.Decimal
	StockQuantity int
	MinStockLevel int
}

// AdjustmentInput describes a manual stock adjustment.
type AdjustmentInput struct {
	WorkspaceID      string
	ProductID        string
	Delta            int
	Reason           Reason
	AdjustmentReason string
	Notes            string
	UserID           string
}

// StockCardEntry describes one row of a product's stock card.
type StockCardEntry struct {
	MovementID  string    `json:"movement_id"`
	Reason      Reason    `json:"reason"`
	ReferenceID string    `json:"reference_id,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
	QtyIn       int       `json:"qty_in"`
	QtyOut      int       `json:"qty_out"`
	BalanceQty  int       `json:"balance_qty"`
	Note        string    `json:"note,omitempty"`
}

// StockCardFilter bounds a stock card. Zero times are open bounds; From is
// exclusive and To inclusive.
type StockCardFilter struct {
	ProductID string
	From      time.Time
	To        time.Time
}

// Mismatch is a product whose stock quantity disagrees with its ledger.
type Mismatch struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Recorded  int    `json:"recorded"`
	Expected  int    `json:"expected"`
}

// ErrProductNotFound indicates a missing or soft-deleted product.
var ErrProductNotFound = errors.New("inventory: product not found")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")

// ErrInvalidReason indicates an unknown or disallowed movement reason.
var ErrInvalidReason = errors.New("inventory: invalid movement reason")

// ErrInvalidPrice indicates a negative price.
var ErrInvalidPrice = errors.New("inventory: prices must be >= 0")
