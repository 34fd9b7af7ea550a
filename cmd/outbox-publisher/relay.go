package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	maxJitter          = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkSent(tx *gorm.DB, id uuid.UUID) error
	MarkRetry(tx *gorm.DB, id uuid.UUID, cause error) error
	Park(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayDeps wires a Relay. Publishers defaults to one Pub/Sub publisher per
// topic taken from PubSub.
type RelayDeps struct {
	Logger      *logger.Logger
	DB          database
	PubSub      topicSource
	Events      eventStore
	DeadLetters deadLetters
	Registry    resolver
	Publishers  publisherFactory
}

// Relay moves committed outbox rows to Pub/Sub. A row is marked sent only
// after the broker acknowledges it, so delivery is at least once. Rows that
// can never be delivered are copied to outbox_dlq and parked.
type Relay struct {
	deps        RelayDeps
	publishers  *topicPublishers
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewRelay(deps RelayDeps, cfg config.OutboxConfig) (*Relay, error) {
	for _, dep := range []struct {
		missing bool
		name    string
	}{
		{deps.Logger == nil, "logger"},
		{deps.DB == nil, "database"},
		{deps.PubSub == nil, "pubsub client"},
		{deps.Events == nil, "outbox store"},
		{deps.DeadLetters == nil, "dlq"},
		{deps.Registry == nil, "event registry"},
	} {
		if dep.missing {
			return nil, fmt.Errorf("%s required", dep.name)
		}
	}

	factory := deps.Publishers
	if factory == nil {
		factory = func(topic string) publisher { return wrapGCPPublisher(deps.PubSub.Publisher(topic)) }
	}
	r := &Relay{
		deps:        deps,
		publishers:  newTopicPublishers(factory),
		batchSize:   orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		now:         time.Now,
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run drains the outbox until ctx ends. A full batch is followed immediately
// by the next one; an empty poll waits one interval and a failed batch
// doubles the wait up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	logg := r.deps.Logger
	if err := r.deps.DB.Ping(ctx); err != nil {
		logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping: %w", err)
	}
	if err := r.deps.PubSub.Ping(ctx); err != nil {
		logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := r.poll
	for ctx.Err() == nil {
		claimed, err := r.drain(ctx)
		switch {
		case err != nil:
			logg.Error(ctx, "outbox relay batch failed", err)
			wait = min(max(wait, r.poll)*2, maxBackoff)
		case claimed:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := pause(ctx, wait+rand.N(maxJitter)); err != nil {
			break
		}
	}
	logg.Info(ctx, "outbox relay stopping")
	return ctx.Err()
}

type verdict int

const (
	verdictSent verdict = iota
	verdictRetry
	verdictDead
)

type outcome struct {
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	err     error
	topic   string
}

func deadLetter(reason enums.OutboxDLQErrorReason, topic string, err error) outcome {
	return outcome{verdict: verdictDead, reason: reason, err: err, topic: topic}
}

// drain claims one batch and records every row's outcome before the
// transaction commits. It reports whether anything was claimed.
func (r *Relay) drain(ctx context.Context) (bool, error) {
	var claimed bool
	err := r.deps.DB.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := r.deps.Events.Claim(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(batch) > 0
		for _, event := range batch {
			if err := r.record(ctx, tx, event, r.publish(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := r.deps.Registry.Resolve(event)
	if err != nil {
		return deadLetter(enums.OutboxDLQReasonNonRetryable, "", err)
	}
	topic := resolved.Descriptor.Topic
	pub := r.publishers.forTopic(topic)
	if pub == nil {
		return deadLetter(enums.OutboxDLQReasonNonRetryable, topic, fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	res := pub.Publish(ctx, buildMessage(event, resolved.Envelope))
	if res == nil {
		return deadLetter(enums.OutboxDLQReasonNonRetryable, topic, fmt.Errorf("no publish result for topic %s", topic))
	}
	_, err = res.Get(ctx)
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		return outcome{verdict: verdictSent, topic: topic}
	case errors.As(err, &permanent):
		return deadLetter(enums.OutboxDLQReasonNonRetryable, topic, err)
	case event.AttemptCount+1 >= r.maxAttempts:
		return deadLetter(enums.OutboxDLQReasonMaxAttempts, topic, fmt.Errorf("attempts exhausted: %w", err))
	default:
		return outcome{verdict: verdictRetry, err: err, topic: topic}
	}
}

func (r *Relay) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, out outcome) error {
	logg := r.deps.Logger
	logCtx := logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"topic":         out.topic,
	})

	switch out.verdict {
	case verdictSent:
		if err := r.deps.Events.MarkSent(tx, event.ID); err != nil {
			return fmt.Errorf("mark %s sent: %w", event.ID, err)
		}
		logg.Info(logCtx, "outbox event published")
		return nil

	case verdictDead:
		msg := out.err.Error()
		logg.Warn(logg.WithFields(logCtx, map[string]any{"error_reason": out.reason, "error": msg}), "outbox event dead-lettered")
		if err := r.deps.DeadLetters.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   out.reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      r.now().UTC(),
		}); err != nil {
			return fmt.Errorf("dead-letter %s: %w", event.ID, err)
		}
		if err := r.deps.Events.Park(tx, event.ID, out.err, r.maxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", event.ID, err)
		}
		return nil

	default:
		logg.Warn(logg.WithField(logCtx, "error", out.err.Error()), "outbox publish failed, will retry")
		if err := r.deps.Events.MarkRetry(tx, event.ID, out.err); err != nil {
			return fmt.Errorf("mark %s for retry: %w", event.ID, err)
		}
		return nil
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
