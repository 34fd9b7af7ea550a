// Package registry maps outbox event types to their Pub/Sub topic and
// payload schema.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is a decoded outbox row ready for publishing.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail identically on every attempt
// and belongs in the DLQ.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable"
	}
	return "non-retryable: " + e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

type route struct {
	EventDescriptor
	decode func(data []byte) (any, error)
}

var payloadRules = validator.New()

// routeFor builds a route whose payload decodes into T and must pass T's
// validate tags.
func routeFor[T any](eventType enums.OutboxEventType, topic string) route {
	return route{
		EventDescriptor: EventDescriptor{EventType: eventType, AggregateType: enums.AggregateOrder, Topic: topic},
		decode: func(data []byte) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			if err := payloadRules.Struct(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// EventRegistry resolves outbox rows. It is immutable after construction.
type EventRegistry struct {
	routes map[enums.OutboxEventType]route
}

// NewEventRegistry sends order lifecycle events to the orders topic and
// notification requests to the notification topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("registry: orders topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("registry: notification topic is required")
	}
	routes := []route{
		routeFor[payloads.OrderCreatedEvent](enums.EventOrderCreated, cfg.OrdersTopic),
		routeFor[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, cfg.OrdersTopic),
		routeFor[payloads.OrderCanceledEvent](enums.EventOrderCanceled, cfg.OrdersTopic),
		routeFor[payloads.NotificationRequestedEvent](enums.EventNotificationRequested, cfg.NotificationTopic),
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]route, len(routes))}
	for _, r := range routes {
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, rt := range r.routes {
		if !slices.Contains(topics, rt.Topic) {
			topics = append(topics, rt.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its route and decodes the payload. Every
// error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unknown event type %q", event.EventType))
	case rt.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s carries aggregate %s, want %s", event.EventType, event.AggregateType, rt.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("%s has no aggregate id", event.EventType))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("envelope: %w", err))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s has an empty payload", event.EventType))
	}
	payload, err := rt.decode(data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: rt.EventDescriptor, Envelope: envelope, Payload: payload}, nil
}
