package layaway

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Collection holds layaway orders with nested items and payments.
const Collection = "layaway_orders"

// NumberPrefix prefixes layaway order numbers.
const NumberPrefix = "LAY-"

// Status of a layaway contract.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order is the layaway aggregate root. BalanceDue is maintained by
// subtracting each payment as it is recorded.
type Order struct {
	docstore.Record
	Number               string           `json:"number"`
	CustomerID           string           `json:"customer_id"`
	UserID               string           `json:"user_id,omitempty"`
	Status               Status           `json:"status"`
	Items                []Item           `json:"items"`
	Payments             []Payment        `json:"payments"`
	Subtotal             decimal.Decimal  `json:"subtotal"`
	Tax                  decimal.Decimal  `json:"tax"`
	Total                decimal.Decimal  `json:"total"`
	DepositAmount        decimal.Decimal  `json:"deposit_amount"`
	DepositPercentage    decimal.Decimal  `json:"deposit_percentage"`
	RestockingFeePercent decimal.Decimal  `json:"restocking_fee_percent"`
	BalanceDue           decimal.Decimal  `json:"balance_due"`
	RefundAmount         *decimal.Decimal `json:"refund_amount,omitempty"`
	Notes                string           `json:"notes,omitempty"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty"`
	CancelledAt          *time.Time       `json:"cancelled_at,omitempty"`
}

// Item is a reserved product line.
type Item struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Payment is an installment. Payments are append-only.
type Payment struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// Paid sums every recorded payment.
func (o Order) Paid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// ItemInput is one requested line. UnitPrice defaults to the product's sale
// price.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateInput describes a new layaway contract. Zero percentages fall back
// to the service defaults.
type CreateInput struct {
	WorkspaceID   string
	CustomerID    string
	UserID        string
	Items         []ItemInput
	DepositAmount decimal.Decimal
	// DepositPercentage and RestockingFeePercent fall back to the service
	// defaults when nil. Zero is a valid explicit value for both.
	DepositPercentage    *decimal.Decimal
	RestockingFeePercent *decimal.Decimal
	PaymentMethod        string
	Notes                string
}

// PaymentInput records an installment.
type PaymentInput struct {
	OrderID       string
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
}

// CancelResult carries the refund owed to the customer. Paying it out is the
// caller's job.
type CancelResult struct {
	Order         Order           `json:"order"`
	Paid          decimal.Decimal `json:"paid"`
	RestockingFee decimal.Decimal `json:"restocking_fee"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
}

// Stats summarises a workspace's layaways.
type Stats struct {
	Active             int             `json:"active"`
	Completed          int             `json:"completed"`
	Cancelled          int             `json:"cancelled"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Collected          decimal.Decimal `json:"collected"`
}

var (
	// ErrOrderNotFound indicates a missing or deleted layaway.
	ErrOrderNotFound = errors.New("layaway: order not found")
	// ErrNoItems indicates a layaway without lines.
	ErrNoItems = errors.New("layaway: at least one item required")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("layaway: quantity must be positive")
	// ErrInsufficientDeposit indicates a deposit below the required minimum.
	ErrInsufficientDeposit = errors.New("layaway: deposit below minimum")
	// ErrInvalidPercentage indicates a percentage outside 0..100.
	ErrInvalidPercentage = errors.New("layaway: percentage must be between 0 and 100")
	// ErrInvalidAmount indicates a non-positive payment.
	ErrInvalidAmount = errors.New("layaway: amount must be positive")
	// ErrNotActive indicates an operation on a completed or cancelled layaway.
	ErrNotActive = errors.New("layaway: order is not active")
)
