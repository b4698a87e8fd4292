package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/suppliers"
)

// Collection holds purchase orders with nested items.
const Collection = "purchase_orders"

// NumberPrefix prefixes purchase order numbers.
const NumberPrefix = "PO-"

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft     POStatus = "draft"
	POStatusSent      POStatus = "sent"
	POStatusConfirmed POStatus = "confirmed"
	POStatusReceived  POStatus = "received"
	POStatusCancelled POStatus = "cancelled"
)

// PurchaseOrder is the aggregate root. Total is always
// Subtotal + Tax + Shipping.
type PurchaseOrder struct {
	docstore.Record
	Number             string          `json:"number"`
	SupplierID         string          `json:"supplier_id"`
	UserID             string          `json:"user_id,omitempty"`
	Status             POStatus        `json:"status"`
	Items              []POLine        `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Tax                decimal.Decimal `json:"tax"`
	Shipping           decimal.Decimal `json:"shipping"`
	Total              decimal.Decimal `json:"total"`
	ExpectedDate       *time.Time      `json:"expected_date,omitempty"`
	ActualDeliveryDate *time.Time      `json:"actual_delivery_date,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
}

// POLine represents an ordered product. ProductName is a snapshot taken at
// creation.
type POLine struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	QuantityOrdered  int             `json:"quantity_ordered"`
	QuantityReceived int             `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	LineTotal        decimal.Decimal `json:"line_total"`
}

// Pending is the quantity still to be delivered.
func (l POLine) Pending() int {
	if l.QuantityReceived >= l.QuantityOrdered {
		return 0
	}
	return l.QuantityOrdered - l.QuantityReceived
}

// FullyReceived reports whether every line has arrived.
func (po PurchaseOrder) FullyReceived() bool {
	for _, l := range po.Items {
		if l.QuantityReceived < l.QuantityOrdered {
			return false
		}
	}
	return true
}

// CreatePOInput describes a new purchase order.
type CreatePOInput struct {
	WorkspaceID  string
	SupplierID   string
	UserID       string
	Items        []POLineInput
	ExpectedDate *time.Time
	Notes        string
}

// POLineInput for order creation.
type POLineInput struct {
	ProductID string
	Quantity  int
	UnitCost  decimal.Decimal
}

// ReceiptLine records one delivery against an order line.
type ReceiptLine struct {
	ItemID           string
	QuantityReceived int
}

// LowStockItem pairs a product at or under its reorder level with a supplier
// and a suggested order quantity. Supplier is nil when no link exists.
type LowStockItem struct {
	Product           inventory.Product          `json:"product"`
	Supplier          *suppliers.Supplier        `json:"supplier,omitempty"`
	Link              *suppliers.ProductSupplier `json:"link,omitempty"`
	SuggestedQuantity int                        `json:"suggested_quantity"`
}

// Backorder is an order line still awaiting delivery.
type Backorder struct {
	OrderID     string   `json:"order_id"`
	Number      string   `json:"number"`
	SupplierID  string   `json:"supplier_id"`
	Status      POStatus `json:"status"`
	ItemID      string   `json:"item_id"`
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Ordered     int      `json:"ordered"`
	Received    int      `json:"received"`
	Pending     int      `json:"pending"`
}

var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = errors.New("procurement: invalid state transition")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: purchase order not found")
	// ErrItemNotFound indicates a receipt line naming an unknown item.
	ErrItemNotFound = errors.New("procurement: order item not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
)
