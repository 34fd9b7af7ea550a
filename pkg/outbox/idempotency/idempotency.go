// Package idempotency keeps event consumers from applying the same outbox
// event twice when Pub/Sub redelivers it.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// MarkerStore is the Redis surface the ledger needs.
type MarkerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Ledger records which events a consumer has handled. A marker lives under
// gc:idempotency:evt:processed:<consumer>:<event_id> until ttl expires.
type Ledger struct {
	store MarkerStore
	ttl   time.Duration
	now   func() time.Time
}

func NewLedger(store MarkerStore, ttl time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("marker store is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl must be non-negative, got %s", ttl)
	}
	return &Ledger{store: store, ttl: ttl, now: time.Now}, nil
}

// Guard runs fn unless consumer already handled eventID, and reports
// whether the call was a duplicate. A failed fn clears the marker so the
// redelivery gets another attempt.
func (l *Ledger) Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	first, err := l.store.SetNX(ctx, key, l.now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	if !first {
		return true, nil
	}

	runErr := fn(ctx)
	if runErr == nil {
		return false, nil
	}
	if err := l.store.Del(context.WithoutCancel(ctx), key); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("clear marker for %s: %w", eventID, err))
	}
	return false, runErr
}

func (l *Ledger) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
