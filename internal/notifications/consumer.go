package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
)

// ConsumerName scopes this consumer's processed-event markers.
const ConsumerName = "order-notifications"

// errPoison marks a message that can never be handled. It is acked so
// Pub/Sub stops redelivering it.
var errPoison = errors.New("poison message")

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type eventGuard interface {
	Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns notification_requested events into inbox rows.
type Consumer struct {
	store    notificationWriter
	sub      receiver
	guard    eventGuard
	logg     *logger.Logger
	validate *validator.Validate
}

func NewConsumer(store notificationWriter, sub receiver, guard eventGuard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case store == nil:
		return nil, errors.New("notification store required")
	case sub == nil:
		return nil, errors.New("notification subscription required")
	case guard == nil:
		return nil, errors.New("idempotency ledger required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{store: store, sub: sub, guard: guard, logg: logg, validate: validator.New()}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acked. Only transient
// failures nack.
func (c *Consumer) handle(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Debug(ctx, "ignoring event")
		return true
	}

	eventID, payload, err := c.decode(data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping undecodable notification event")
		return true
	}
	ctx = c.logg.WithOrderID(ctx, payload.OrderID.String())

	dup, err := c.guard.Guard(ctx, ConsumerName, eventID, func(ctx context.Context) error {
		return c.store.Create(ctx, toNotification(payload))
	})
	switch {
	case err != nil:
		c.logg.Error(ctx, "storing notification failed", err)
		return false
	case dup:
		c.logg.Info(ctx, "duplicate notification event")
	default:
		c.logg.Info(ctx, "customer notified")
	}
	return true
}

func (c *Consumer) decode(data []byte) (uuid.UUID, payloads.NotificationRequestedEvent, error) {
	var (
		env     outbox.PayloadEnvelope
		payload payloads.NotificationRequestedEvent
	)
	if err := json.Unmarshal(data, &env); err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: envelope: %v", errPoison, err)
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: event id %q", errPoison, env.EventID)
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: payload: %v", errPoison, err)
	}
	if err := c.validate.Struct(payload); err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: %v", errPoison, err)
	}
	if !payload.Type.IsValid() {
		return uuid.Nil, payload, fmt.Errorf("%w: notification type %q", errPoison, payload.Type)
	}
	return eventID, payload, nil
}

func toNotification(p payloads.NotificationRequestedEvent) *models.Notification {
	orderID := p.OrderID
	return &models.Notification{
		CustomerID: p.CustomerID,
		OrderID:    &orderID,
		Type:       p.Type,
		Title:      strings.TrimSpace(p.Title),
		Message:    strings.TrimSpace(p.Message),
		Link:       p.Link,
	}
}
