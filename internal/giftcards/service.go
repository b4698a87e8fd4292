package giftcards

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	View(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const numberAttempts = 3

// Service issues and redeems gift cards.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	now      func() time.Time
	generate func(time.Time) string
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now, generate: GenerateCardNumber}
}

// GenerateCardNumber returns "GC", the last 8 digits of the unix millisecond
// timestamp and 6 random digits.
func GenerateCardNumber(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return "GC" + ts + fmt.Sprintf("%06d", rand.IntN(1_000_000))
}

func normalize(cardNumber string) string {
	return strings.ToUpper(strings.TrimSpace(cardNumber))
}

// IssueGiftCard creates an active card whose balance equals the amount.
func (s *Service) IssueGiftCard(ctx context.Context, input IssueInput) (GiftCard, error) {
	const op = "giftcards.IssueGiftCard"
	if strings.TrimSpace(input.WorkspaceID) == "" {
		return GiftCard{}, shared.Validation(op, nil, "workspace is required")
	}
	if !money.Positive(input.Amount) {
		return GiftCard{}, shared.Validation(op, ErrInvalidAmount, "amount must be positive")
	}
	now := s.now()
	amount := money.Round(input.Amount)
	card := GiftCard{
		Record:         docstore.NewRecord(input.WorkspaceID, now),
		OriginalAmount: amount,
		Balance:        amount,
		IsActive:       true,
		CustomerID:     input.CustomerID,
		IssuedBy:       input.IssuedBy,
		IssuedAt:       now.UTC(),
		Notes:          input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for range numberAttempts {
			number := s.generate(now)
			exists, err := tx.NumberExists(ctx, number)
			if err != nil {
				return err
			}
			if !exists {
				card.CardNumber = number
				return tx.Insert(ctx, card)
			}
		}
		return ErrNumberInUse
	})
	if err != nil {
		return GiftCard{}, err
	}
	s.recordAudit(ctx, input.IssuedBy, "gift_card:issue", card, card.Balance)
	return card, nil
}

// RedeemGiftCard deducts amount from the card. Missing, inactive and
// underfunded cards are reported through the result outcome, not as errors.
// A card redeemed down to zero is deactivated. Cards are looked up within
// workspaceID only.
func (s *Service) RedeemGiftCard(ctx context.Context, workspaceID, cardNumber string, amount decimal.Decimal, actorID string) (RedeemResult, error) {
	const op = "giftcards.RedeemGiftCard"
	if !money.Positive(amount) {
		return RedeemResult{}, shared.Validation(op, ErrInvalidAmount, "amount must be positive")
	}
	amount = money.Round(amount)
	var result RedeemResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		card, err := tx.GetByNumberForUpdate(ctx, workspaceID, normalize(cardNumber))
		if errors.Is(err, ErrCardNotFound) {
			result = RedeemResult{Outcome: OutcomeNotFound, Redeemed: money.Zero}
			return nil
		}
		if err != nil {
			return err
		}
		balance := card.Balance
		result = RedeemResult{Card: &card, Redeemed: money.Zero, Balance: &balance}
		switch {
		case !card.IsActive:
			result.Outcome = OutcomeInactive
			return nil
		case card.Balance.LessThan(amount):
			result.Outcome = OutcomeInsufficientBalance
			return nil
		}
		now := s.now()
		at := now.UTC()
		card.Balance = card.Balance.Sub(amount)
		card.LastUsedAt = &at
		if card.Balance.Sign() <= 0 {
			card.IsActive = false
		}
		card.MarkDirty(now)
		balance = card.Balance
		result.Outcome = OutcomeRedeemed
		result.Redeemed = amount
		return tx.Save(ctx, card)
	})
	if err != nil {
		return RedeemResult{}, err
	}
	if result.OK() {
		s.recordAudit(ctx, actorID, "gift_card:redeem", *result.Card, amount)
	}
	return result, nil
}

// ReloadGiftCard tops up the card and reactivates it. OriginalAmount is
// raised to the new balance when the top-up exceeds it.
func (s *Service) ReloadGiftCard(ctx context.Context, workspaceID, cardNumber string, amount decimal.Decimal) (GiftCard, error) {
	const op = "giftcards.ReloadGiftCard"
	if !money.Positive(amount) {
		return GiftCard{}, shared.Validation(op, ErrInvalidAmount, "amount must be positive")
	}
	return s.mutate(ctx, op, workspaceID, cardNumber, func(card *GiftCard) {
		card.Balance = card.Balance.Add(money.Round(amount))
		card.OriginalAmount = money.Max(card.OriginalAmount, card.Balance)
		card.IsActive = true
	})
}

// DeactivateGiftCard blocks further redemptions. The balance is kept.
func (s *Service) DeactivateGiftCard(ctx context.Context, workspaceID, cardNumber string) (GiftCard, error) {
	return s.mutate(ctx, "giftcards.DeactivateGiftCard", workspaceID, cardNumber, func(card *GiftCard) {
		card.IsActive = false
	})
}

func (s *Service) mutate(ctx context.Context, op, workspaceID, cardNumber string, fn func(*GiftCard)) (GiftCard, error) {
	var out GiftCard
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		card, err := tx.GetByNumberForUpdate(ctx, workspaceID, normalize(cardNumber))
		if err != nil {
			return err
		}
		fn(&card)
		card.MarkDirty(s.now())
		out = card
		return tx.Save(ctx, card)
	})
	if errors.Is(err, ErrCardNotFound) {
		return GiftCard{}, shared.NotFound(op, err, "gift card %s not found", cardNumber)
	}
	return out, err
}

// CheckBalance returns the card without changing it.
func (s *Service) CheckBalance(ctx context.Context, workspaceID, cardNumber string) (GiftCard, error) {
	var out GiftCard
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		card, err := tx.GetByNumber(ctx, workspaceID, normalize(cardNumber))
		out = card
		return err
	})
	if errors.Is(err, ErrCardNotFound) {
		return GiftCard{}, shared.NotFound("giftcards.CheckBalance", err, "gift card %s not found", cardNumber)
	}
	return out, err
}

// ListGiftCards returns the workspace's cards newest first.
func (s *Service) ListGiftCards(ctx context.Context, workspaceID string, activeOnly bool) ([]GiftCard, error) {
	var out []GiftCard
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		cards, err := tx.List(ctx, workspaceID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if activeOnly && !c.IsActive {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// BulkGenerateGiftCards issues count cards one at a time. On failure the
// cards issued so far are returned with the error.
func (s *Service) BulkGenerateGiftCards(ctx context.Context, input BulkInput) ([]GiftCard, error) {
	const op = "giftcards.BulkGenerateGiftCards"
	if input.Count <= 0 {
		return nil, shared.Validation(op, ErrInvalidCount, "count must be positive")
	}
	if !money.Positive(input.Amount) {
		return nil, shared.Validation(op, ErrInvalidAmount, "amount must be positive")
	}
	cards := make([]GiftCard, 0, input.Count)
	for i := range input.Count {
		if err := ctx.Err(); err != nil {
			return cards, err
		}
		card, err := s.IssueGiftCard(ctx, IssueInput{
			WorkspaceID: input.WorkspaceID,
			Amount:      input.Amount,
			IssuedBy:    input.IssuedBy,
			Notes:       fmt.Sprintf("bulk %d/%d", i+1, input.Count),
		})
		if err != nil {
			return cards, fmt.Errorf("issue card %d of %d: %w", i+1, input.Count, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, card GiftCard, amount decimal.Decimal) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		WorkspaceID: card.WorkspaceID,
		ActorID:     actor,
		Action:      action,
		Entity:      "gift_card",
		EntityID:    card.ID,
		Meta: map[string]any{
			"card_number": card.CardNumber,
			"amount":      amount.StringFixed(2),
			"balance":     card.Balance.StringFixed(2),
		},
	})
}
