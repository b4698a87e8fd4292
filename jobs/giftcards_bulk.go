package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/giftcards"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// GiftCardIssuer issues gift cards in bulk.
type GiftCardIssuer interface {
	BulkGenerateGiftCards(ctx context.Context, input giftcards.BulkInput) ([]giftcards.GiftCard, error)
}

// GiftCardsBulkJob issues a batch of gift cards in the background.
type GiftCardsBulkJob struct {
	Cards   GiftCardIssuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGiftCardsBulkJob initialises the giftcards:bulk_generate handler.
func NewGiftCardsBulkJob(cards GiftCardIssuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *GiftCardsBulkJob {
	return &GiftCardsBulkJob{Cards: cards, Logger: logger, Metrics: metrics}
}

// Handle issues the batch. Invalid input and partially issued batches are
// not retried, since a retry would issue the already created cards again.
func (j *GiftCardsBulkJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cards == nil {
		return errors.New("giftcards bulk: handler not configured")
	}
	var payload GiftCardsBulkPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskGiftCardsBulkGenerate)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerOr(j.Logger).With(
		slog.String("job", TaskGiftCardsBulkGenerate),
		slog.String("workspace_id", payload.WorkspaceID),
		slog.Int("count", payload.Count),
	)
	cards, err := j.Cards.BulkGenerateGiftCards(ctx, giftcards.BulkInput{
		WorkspaceID: payload.WorkspaceID,
		Count:       payload.Count,
		Amount:      payload.Amount,
		IssuedBy:    payload.IssuedBy,
	})
	if err != nil {
		logger.Error("bulk generate failed", slog.Int("issued", len(cards)), slog.Any("error", err))
		if len(cards) > 0 || errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("giftcards bulk: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Info("gift cards issued", slog.Int("issued", len(cards)))
	return nil
}
