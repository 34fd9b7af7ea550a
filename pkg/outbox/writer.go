package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

// onceConstraint is the partial unique index that allows a single row per
// aggregate for once-only event types.
const onceConstraint = "ux_outbox_events_once_per_aggregate"

// DomainEvent is what services hand to the Writer. Data is marshaled into the
// envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type rowStore interface {
	Append(tx *gorm.DB, row models.OutboxEvent) error
	Exists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

// Writer records domain events on the caller's transaction so they commit or
// roll back with the state change that produced them.
type Writer struct {
	rows rowStore
	logg *logger.Logger
	now  func() time.Time
}

func NewWriter(rows rowStore, logg *logger.Logger) *Writer {
	return &Writer{rows: rows, logg: logg, now: time.Now}
}

func (w *Writer) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	switch {
	case !event.EventType.IsValid():
		return fmt.Errorf("invalid outbox event type %q", event.EventType)
	case !event.AggregateType.IsValid():
		return fmt.Errorf("invalid outbox aggregate type %q", event.AggregateType)
	}
	row, eventID, err := w.encode(event)
	if err != nil {
		return err
	}
	if err := w.rows.Append(tx, row); err != nil {
		return err
	}
	if w.logg != nil {
		w.logg.Info(w.logg.WithFields(ctx, map[string]any{
			"event_id":       eventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

// EmitIfNotExists is Emit for events that fire at most once per aggregate.
// Losing the insert race against the unique index counts as already emitted.
func (w *Writer) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	seen, err := w.rows.Exists(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || seen {
		return err
	}
	err = w.Emit(ctx, tx, event)
	if dbpkg.IsUniqueViolation(err, onceConstraint) {
		return nil
	}
	return err
}

func (w *Writer) encode(event DomainEvent) (models.OutboxEvent, string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, "", fmt.Errorf("encode event data: %w", err)
	}
	env := PayloadEnvelope{
		Version:    max(event.Version, 1),
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = w.now().UTC()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, "", err
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, env.EventID, nil
}
