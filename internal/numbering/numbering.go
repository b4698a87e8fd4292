// Package numbering derives human-readable document numbers such as PO-001
// and LAY-014.
//
// The next number is computed by scanning the workspace's existing documents
// for the highest suffix. The scan alone races under concurrent creation, so
// every issued number is also reserved in the document_numbers collection,
// whose id is unique. A losing writer gets ErrNumberTaken and is expected to
// re-run its whole transaction through WithRetry.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// ReservationCollection stores issued numbers.
const ReservationCollection = "document_numbers"

// DefaultAttempts bounds WithRetry when callers pass zero.
const DefaultAttempts = 5

// ErrNumberTaken indicates another writer reserved the same number first.
var ErrNumberTaken = errors.New("numbering: number already taken")

type numbered struct {
	Number string `json:"number"`
}

type reservation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Collection  string    `json:"collection"`
	Number      string    `json:"number"`
	ReservedAt  time.Time `json:"reserved_at"`
}

// Next computes and reserves the next number for prefix inside tx.
func Next(ctx context.Context, tx docstore.Tx, collection, workspaceID, prefix string) (string, error) {
	docs, err := docstore.Find[numbered](ctx, tx, collection,
		docstore.Where(docstore.FieldWorkspaceID, docstore.OpEq, workspaceID))
	if err != nil {
		return "", fmt.Errorf("numbering: scan %s: %w", collection, err)
	}
	numbers := make([]string, 0, len(docs))
	for _, d := range docs {
		numbers = append(numbers, d.Number)
	}
	number := Format(prefix, MaxSuffix(prefix, numbers)+1)

	err = docstore.Insert(ctx, tx, ReservationCollection, workspaceID+":"+number, reservation{
		ID:          workspaceID + ":" + number,
		WorkspaceID: workspaceID,
		Collection:  collection,
		Number:      number,
		ReservedAt:  time.Now().UTC(),
	})
	if errors.Is(err, docstore.ErrDuplicate) {
		return "", ErrNumberTaken
	}
	if err != nil {
		return "", fmt.Errorf("numbering: reserve %s: %w", number, err)
	}
	return number, nil
}

// MaxSuffix returns the highest numeric suffix among numbers carrying prefix,
// or 0 when none parse.
func MaxSuffix(prefix string, numbers []string) int {
	max := 0
	for _, n := range numbers {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		v, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err != nil || v < 0 {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max
}

// Format zero-pads seq to three digits.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// WithRetry runs fn until it stops failing with ErrNumberTaken.
func WithRetry(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); !errors.Is(err, ErrNumberTaken) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
