package layaway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/numbering"
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

// ServiceConfig holds the pricing policy.
type ServiceConfig struct {
	TaxRate                     decimal.Decimal
	MinDepositPercent           decimal.Decimal
	DefaultRestockingFeePercent decimal.Decimal
}

// Service manages layaway contracts.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cfg   ServiceConfig
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, cfg: cfg, now: time.Now}
}

var hundred = decimal.NewFromInt(100)

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// CreateLayawayOrder reserves stock for every item, records the deposit as
// the first payment and returns the new order. A deposit covering the whole
// total completes the order immediately.
func (s *Service) CreateLayawayOrder(ctx context.Context, input CreateInput) (Order, error) {
	const op = "layaway.CreateLayawayOrder"
	if strings.TrimSpace(input.WorkspaceID) == "" {
		return Order{}, shared.Validation(op, nil, "workspace is required")
	}
	if strings.TrimSpace(input.CustomerID) == "" {
		return Order{}, shared.Validation(op, nil, "customer is required")
	}
	if len(input.Items) == 0 {
		return Order{}, shared.Validation(op, ErrNoItems, "at least one item is required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return Order{}, shared.Validation(op, ErrInvalidQuantity, "quantity for %s must be positive", item.ProductID)
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return Order{}, shared.Validation(op, inventory.ErrInvalidPrice, "price for %s must be >= 0", item.ProductID)
		}
	}
	depositPct := s.cfg.MinDepositPercent
	if input.DepositPercentage != nil {
		depositPct = *input.DepositPercentage
	}
	feePct := s.cfg.DefaultRestockingFeePercent
	if input.RestockingFeePercent != nil {
		feePct = *input.RestockingFeePercent
	}
	if !validPercent(depositPct) || !validPercent(feePct) {
		return Order{}, shared.Validation(op, ErrInvalidPercentage, "percentages must be between 0 and 100")
	}
	if input.DepositAmount.IsNegative() {
		return Order{}, shared.Validation(op, ErrInvalidAmount, "deposit must be >= 0")
	}
	method := input.PaymentMethod
	if method == "" {
		method = "cash"
	}

	var out Order
	err := numbering.WithRetry(ctx, numbering.DefaultAttempts, func(ctx context.Context) error {
		now := s.now()
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			order := Order{
				Record:               docstore.NewRecord(input.WorkspaceID, now),
				CustomerID:           input.CustomerID,
				UserID:               input.UserID,
				Status:               StatusActive,
				DepositPercentage:    depositPct,
				RestockingFeePercent: feePct,
				Notes:                input.Notes,
			}
			subtotal := money.Zero
			for _, in := range input.Items {
				product, err := tx.GetProduct(ctx, in.ProductID)
				if err != nil {
					return err
				}
				if product.WorkspaceID != input.WorkspaceID {
					return shared.NotFound(op, inventory.ErrProductNotFound, "product %s not found", in.ProductID)
				}
				price := product.SalePrice
				if in.UnitPrice != nil {
					price = *in.UnitPrice
				}
				line := money.Line(in.Quantity, price)
				order.Items = append(order.Items, Item{
					ID:          uuid.NewString(),
					ProductID:   product.ID,
					ProductName: product.Name,
					Quantity:    in.Quantity,
					UnitPrice:   price,
					LineTotal:   line,
				})
				subtotal = subtotal.Add(line)
			}
			order.Subtotal = subtotal
			order.Tax = money.Rate(subtotal, s.cfg.TaxRate)
			order.Total = subtotal.Add(order.Tax)

			minimum := money.Percent(order.Total, depositPct)
			if input.DepositAmount.LessThan(minimum) {
				return shared.Validation(op, ErrInsufficientDeposit, "deposit %s is below the minimum %s", input.DepositAmount.StringFixed(2), minimum.StringFixed(2))
			}

			number, err := tx.NextNumber(ctx, input.WorkspaceID)
			if err != nil {
				return err
			}
			order.Number = number

			// No availability check: reservations may take stock negative.
			for _, item := range order.Items {
				if _, err := tx.ApplyMovement(ctx, inventory.MovementInput{
					WorkspaceID:   input.WorkspaceID,
					ProductID:     item.ProductID,
					Delta:         -item.Quantity,
					Reason:        inventory.ReasonCorrection,
					ReferenceType: "layaway",
					ReferenceID:   order.ID,
					Notes:         "layaway reservation " + number,
					UserID:        input.UserID,
				}, now); err != nil {
					return err
				}
			}

			order.DepositAmount = input.DepositAmount
			order.BalanceDue = order.Total
			applyPayment(&order, Payment{
				ID:            uuid.NewString(),
				Amount:        input.DepositAmount,
				PaymentMethod: method,
				Notes:         "deposit",
				PaidAt:        now.UTC(),
			}, now)
			out = order
			return tx.InsertOrder(ctx, order)
		})
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, input.UserID, "layaway:create", out)
	return out, nil
}

// applyPayment appends p and reduces the balance by its amount. A balance at
// or below zero completes the order.
func applyPayment(order *Order, p Payment, now time.Time) {
	order.Payments = append(order.Payments, p)
	order.BalanceDue = order.BalanceDue.Sub(p.Amount)
	order.MarkDirty(now)
	if order.BalanceDue.Sign() <= 0 {
		complete(order, now)
	}
}

func complete(order *Order, now time.Time) {
	at := now.UTC()
	order.Status = StatusCompleted
	order.CompletedAt = &at
	order.MarkDirty(now)
}

// RecordPayment appends an installment to an active layaway.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Order, error) {
	const op = "layaway.RecordPayment"
	if !money.Positive(input.Amount) {
		return Order{}, shared.Validation(op, ErrInvalidAmount, "payment amount must be positive")
	}
	method := input.PaymentMethod
	if method == "" {
		method = "cash"
	}
	now := s.now()
	var out Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != StatusActive {
			return shared.Conflict(op, ErrNotActive, "layaway %s is %s", order.Number, order.Status)
		}
		applyPayment(&order, Payment{
			ID:            uuid.NewString(),
			Amount:        input.Amount,
			PaymentMethod: method,
			Notes:         input.Notes,
			PaidAt:        now.UTC(),
		}, now)
		out = order
		return tx.SaveOrder(ctx, order)
	})
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, shared.NotFound(op, err, "layaway %s not found", input.OrderID)
	}
	return out, err
}

// CompleteLayaway marks an active layaway completed. Stock was reserved at
// creation, so nothing moves.
func (s *Service) CompleteLayaway(ctx context.Context, id string) (Order, error) {
	const op = "layaway.CompleteLayaway"
	now := s.now()
	var out Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusActive {
			return shared.Conflict(op, ErrNotActive, "layaway %s is %s", order.Number, order.Status)
		}
		complete(&order, now)
		out = order
		return tx.SaveOrder(ctx, order)
	})
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, shared.NotFound(op, err, "layaway %s not found", id)
	}
	return out, err
}

// CancelLayaway returns reserved stock and computes the refund owed: every
// payment, less the restocking fee when applyFee is set.
func (s *Service) CancelLayaway(ctx context.Context, id string, applyFee bool, userID string) (CancelResult, error) {
	const op = "layaway.CancelLayaway"
	now := s.now()
	var result CancelResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusActive {
			return shared.Conflict(op, ErrNotActive, "layaway %s is %s", order.Number, order.Status)
		}
		paid := order.Paid()
		fee := money.Zero
		if applyFee {
			fee = money.Percent(paid, order.RestockingFeePercent)
		}
		refund := paid.Sub(fee)

		for _, item := range order.Items {
			if _, err := tx.ApplyMovement(ctx, inventory.MovementInput{
				WorkspaceID:   order.WorkspaceID,
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				Reason:        inventory.ReasonReturn,
				ReferenceType: "layaway",
				ReferenceID:   order.ID,
				Notes:         "layaway cancelled " + order.Number,
				UserID:        userID,
			}, now); err != nil {
				return err
			}
		}

		at := now.UTC()
		order.Status = StatusCancelled
		order.CancelledAt = &at
		order.RefundAmount = &refund
		order.MarkDirty(now)
		result = CancelResult{Order: order, Paid: paid, RestockingFee: fee, RefundAmount: refund}
		return tx.SaveOrder(ctx, order)
	})
	if errors.Is(err, ErrOrderNotFound) {
		return CancelResult{}, shared.NotFound(op, err, "layaway %s not found", id)
	}
	if err != nil {
		return CancelResult{}, err
	}
	s.record(ctx, userID, "layaway:cancel", result.Order)
	return result, nil
}

// GetLayawayOrders lists live orders newest first. An empty status lists all.
func (s *Service) GetLayawayOrders(ctx context.Context, workspaceID string, status Status) ([]Order, error) {
	var out []Order
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListOrders(ctx, workspaceID, status)
		return err
	})
	return out, err
}

// GetLayawayOrderByID returns one live order.
func (s *Service) GetLayawayOrderByID(ctx context.Context, id string) (Order, error) {
	var out Order
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.GetOrder(ctx, id)
		return err
	})
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, shared.NotFound("layaway.GetLayawayOrderByID", err, "layaway %s not found", id)
	}
	return out, err
}

// GetLayawayStats counts orders by status and totals money still owed on
// active orders. Collected excludes refunds paid out on cancellation.
func (s *Service) GetLayawayStats(ctx context.Context, workspaceID string) (Stats, error) {
	orders, err := s.GetLayawayOrders(ctx, workspaceID, "")
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{OutstandingBalance: money.Zero, Collected: money.Zero}
	for _, o := range orders {
		switch o.Status {
		case StatusActive:
			stats.Active++
			stats.OutstandingBalance = stats.OutstandingBalance.Add(o.BalanceDue)
			stats.Collected = stats.Collected.Add(o.Paid())
		case StatusCompleted:
			stats.Completed++
			stats.Collected = stats.Collected.Add(o.Paid())
		case StatusCancelled:
			stats.Cancelled++
			if o.RefundAmount != nil {
				stats.Collected = stats.Collected.Add(o.Paid().Sub(*o.RefundAmount))
			}
		}
	}
	return stats, nil
}

func (s *Service) record(ctx context.Context, actor, action string, order Order) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		WorkspaceID: order.WorkspaceID,
		ActorID:     actor,
		Action:      action,
		Entity:      "layaway_order",
		EntityID:    order.ID,
		Meta: map[string]any{
			"number":      order.Number,
			"status":      order.Status,
			"balance_due": order.BalanceDue.StringFixed(2),
		},
	})
}
