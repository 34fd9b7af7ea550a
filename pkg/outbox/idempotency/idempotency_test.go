package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocer-backend/pkg/redis"
)

const consumer = "order-notifications"

func newLedger(t *testing.T, ttl time.Duration) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	ledger, err := NewLedger(client, ttl)
	require.NoError(t, err)
	ledger.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return ledger, mr
}

func TestGuardRunsOncePerEvent(t *testing.T) {
	ledger, mr := newLedger(t, 24*time.Hour)
	eventID := uuid.New()
	calls := 0
	handle := func(context.Context) error { calls++; return nil }

	dup, err := ledger.Guard(context.Background(), consumer, eventID, handle)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = ledger.Guard(context.Background(), consumer, eventID, handle)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, calls)

	key := "gc:idempotency:evt:processed:" + consumer + ":" + eventID.String()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T09:30:00Z", got)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}

func TestGuardScopesMarkersByConsumer(t *testing.T) {
	ledger, _ := newLedger(t, time.Hour)
	eventID := uuid.New()
	noop := func(context.Context) error { return nil }

	_, err := ledger.Guard(context.Background(), consumer, eventID, noop)
	require.NoError(t, err)
	dup, err := ledger.Guard(context.Background(), "order-analytics", eventID, noop)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestGuardClearsMarkerOnFailure(t *testing.T) {
	ledger, mr := newLedger(t, time.Hour)
	eventID := uuid.New()

	dup, err := ledger.Guard(context.Background(), consumer, eventID, func(context.Context) error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
	assert.False(t, dup)
	assert.Empty(t, mr.Keys())

	calls := 0
	dup, err = ledger.Guard(context.Background(), consumer, eventID, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, calls)
}

func TestGuardReportsStoreFailure(t *testing.T) {
	ledger, mr := newLedger(t, time.Hour)
	mr.SetError("READONLY")

	called := false
	_, err := ledger.Guard(context.Background(), consumer, uuid.New(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestGuardRequiresIdentifiers(t *testing.T) {
	ledger, _ := newLedger(t, time.Hour)
	noop := func(context.Context) error { return nil }

	_, err := ledger.Guard(context.Background(), "", uuid.New(), noop)
	assert.EqualError(t, err, "consumer name is required")
	_, err = ledger.Guard(context.Background(), consumer, uuid.Nil, noop)
	assert.EqualError(t, err, "event id is required")
}

func TestNewLedgerValidates(t *testing.T) {
	_, err := NewLedger(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewLedger(redis.Wrap(nil), -time.Second)
	assert.Error(t, err)
}
