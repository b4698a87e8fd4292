package giftcards

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Collection holds gift cards.
const Collection = "gift_cards"

// GiftCard is a stored-value card. Balance never exceeds OriginalAmount.
type GiftCard struct {
	docstore.Record
	CardNumber     string          `json:"card_number"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Balance        decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"is_active"`
	CustomerID     string          `json:"customer_id,omitempty"`
	IssuedBy       string          `json:"issued_by,omitempty"`
	IssuedAt       time.Time       `json:"issued_at"`
	LastUsedAt     *time.Time      `json:"last_used_at,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// Outcome discriminates redemption results.
type Outcome string

const (
	OutcomeRedeemed            Outcome = "ok"
	OutcomeNotFound            Outcome = "not_found"
	OutcomeInactive            Outcome = "inactive"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
)

// RedeemResult reports a redemption attempt. Card is set for every outcome
// except OutcomeNotFound.
type RedeemResult struct {
	Outcome  Outcome          `json:"outcome"`
	Card     *GiftCard        `json:"card,omitempty"`
	Redeemed decimal.Decimal  `json:"redeemed"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
}

// OK reports whether the amount was deducted.
func (r RedeemResult) OK() bool {
	return r.Outcome == OutcomeRedeemed
}

// IssueInput describes a card sale.
type IssueInput struct {
	WorkspaceID string
	Amount      decimal.Decimal
	CustomerID  string
	IssuedBy    string
	Notes       string
}

// BulkInput describes a batch of identical cards.
type BulkInput struct {
	WorkspaceID string
	Count       int
	Amount      decimal.Decimal
	IssuedBy    string
}

var (
	ErrCardNotFound  = errors.New("giftcards: card not found")
	ErrInvalidAmount = errors.New("giftcards: amount must be positive")
	ErrInvalidCount  = errors.New("giftcards: count must be positive")
	ErrNumberInUse   = errors.New("giftcards: card number already issued")
)
