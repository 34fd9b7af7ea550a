package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

type memoryRows struct {
	rows      []models.OutboxEvent
	seen      bool
	appendErr error
}

func (m *memoryRows) Append(_ *gorm.DB, row models.OutboxEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *memoryRows) Exists(*gorm.DB, enums.OutboxEventType, enums.OutboxAggregateType, uuid.UUID) (bool, error) {
	return m.seen, nil
}

func orderCreated(data any) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          data,
	}
}

func TestEmitWrapsDataInEnvelope(t *testing.T) {
	rows := &memoryRows{}
	w := NewWriter(rows, nil)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	event := orderCreated(map[string]string{"orderNumber": "ORD20260301-1234"})
	event.Actor = &ActorRef{UserID: uuid.New(), Role: "customer"}
	require.NoError(t, w.Emit(context.Background(), &gorm.DB{}, event))

	require.Len(t, rows.rows, 1)
	row := rows.rows[0]
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.Equal(t, event.AggregateID, row.AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.NotEmpty(t, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, event.Actor.UserID, env.Actor.UserID)
	assert.JSONEq(t, `{"orderNumber":"ORD20260301-1234"}`, string(env.Data))
}

func TestEmitRejects(t *testing.T) {
	cases := map[string]struct {
		tx    *gorm.DB
		event DomainEvent
	}{
		"no transaction":     {event: orderCreated(nil)},
		"unknown event type": {tx: &gorm.DB{}, event: DomainEvent{EventType: "order_vanished", AggregateType: enums.AggregateOrder}},
		"unknown aggregate":  {tx: &gorm.DB{}, event: DomainEvent{EventType: enums.EventOrderCreated, AggregateType: "basket"}},
		"unencodable data":   {tx: &gorm.DB{}, event: orderCreated(make(chan int))},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rows := &memoryRows{}
			assert.Error(t, NewWriter(rows, nil).Emit(context.Background(), tc.tx, tc.event))
			assert.Empty(t, rows.rows)
		})
	}
}

func TestEmitIfNotExists(t *testing.T) {
	event := DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
	}

	rows := &memoryRows{seen: true}
	require.NoError(t, NewWriter(rows, nil).EmitIfNotExists(context.Background(), &gorm.DB{}, event))
	assert.Empty(t, rows.rows, "already recorded")

	rows = &memoryRows{appendErr: errors.New(`ERROR: duplicate key value violates unique constraint "ux_outbox_events_once_per_aggregate"`)}
	assert.NoError(t, NewWriter(rows, nil).EmitIfNotExists(context.Background(), &gorm.DB{}, event), "lost insert race")

	rows = &memoryRows{appendErr: errors.New("connection reset")}
	assert.Error(t, NewWriter(rows, nil).EmitIfNotExists(context.Background(), &gorm.DB{}, event))
}
