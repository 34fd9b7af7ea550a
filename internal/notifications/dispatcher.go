package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type dropRecorder interface {
	IncNotificationDropped()
}

type request struct {
	ctx   context.Context
	event payloads.NotificationRequestedEvent
	once  bool
}

// Dispatcher queues customer notifications without blocking the caller. A
// background worker turns each request into a notification_requested outbox
// event; a full queue or a stopped worker drops the request.
type Dispatcher struct {
	queue   chan request
	tx      txRunner
	outbox  eventEmitter
	logg    *logger.Logger
	metrics dropRecorder
	wg      sync.WaitGroup

	// mu guards stopped; senders hold the read lock across the channel send
	// so nothing lands in the queue after the final drain.
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher builds a dispatcher with a queue of size buffer. metrics may be nil.
func NewDispatcher(tx txRunner, emitter eventEmitter, logg *logger.Logger, metrics dropRecorder, buffer int) (*Dispatcher, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		queue:   make(chan request, buffer),
		tx:      tx,
		outbox:  emitter,
		logg:    logg,
		metrics: metrics,
	}, nil
}

// SendOrderConfirmation enqueues the one-time confirmation for a placed order.
// It reports false when the request was dropped.
func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, order models.Order) bool {
	link := fmt.Sprintf("/orders/%s", order.ID)
	return d.enqueue(ctx, request{
		once: true,
		event: payloads.NotificationRequestedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			CustomerEmail: order.CustomerEmail,
			Type:          enums.NotificationTypeOrderConfirmation,
			Title:         "Order placed",
			Message:       fmt.Sprintf("Your order %s has been placed. Total: %s.", order.OrderNumber, formatCents(order.TotalCents)),
			Link:          &link,
		},
	})
}

// SendOrderUpdate enqueues a status change notice.
func (d *Dispatcher) SendOrderUpdate(ctx context.Context, order models.Order) bool {
	link := fmt.Sprintf("/orders/%s", order.ID)
	kind := enums.NotificationTypeOrderUpdate
	title := "Order update"
	message := fmt.Sprintf("Your order %s is now %s.", order.OrderNumber, statusLabel(order.Status))
	if order.Status == enums.OrderStatusCancelled {
		kind = enums.NotificationTypeOrderCancelled
		title = "Order cancelled"
		message = fmt.Sprintf("Your order %s has been cancelled.", order.OrderNumber)
	}
	return d.enqueue(ctx, request{
		event: payloads.NotificationRequestedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			CustomerEmail: order.CustomerEmail,
			Type:          kind,
			Title:         title,
			Message:       message,
			Link:          &link,
		},
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, req request) bool {
	req.ctx = context.WithoutCancel(ctx)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(ctx, req, "notifications.dispatcher_stopped")
		return false
	}
	select {
	case d.queue <- req:
		return true
	default:
		d.drop(ctx, req, "notifications.queue_full")
		return false
	}
}

func (d *Dispatcher) drop(ctx context.Context, req request, msg string) {
	if d.metrics != nil {
		d.metrics.IncNotificationDropped()
	}
	if d.logg != nil {
		logCtx := d.logg.WithOrderID(ctx, req.event.OrderID.String())
		d.logg.Warn(logCtx, msg)
	}
}

// Start launches the worker. It drains the queue until ctx is cancelled, then
// refuses new requests and flushes pending ones before exiting. Cancel ctx
// only once callers have stopped sending.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.stopped = true
			d.mu.Unlock()
			d.drain()
			return
		case req := <-d.queue:
			d.handle(req)
		}
	}
}

// Wait blocks until the worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case req := <-d.queue:
			d.handle(req)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(req request) {
	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   req.event.OrderID,
		Data:          req.event,
	}
	err := d.tx.WithTx(req.ctx, func(tx *gorm.DB) error {
		if req.once {
			return d.outbox.EmitIfNotExists(req.ctx, tx, event)
		}
		event.AggregateType = enums.AggregateNotification
		event.AggregateID = uuid.New()
		return d.outbox.Emit(req.ctx, tx, event)
	})
	if err != nil && d.logg != nil {
		logCtx := d.logg.WithOrderID(req.ctx, req.event.OrderID.String())
		d.logg.Error(logCtx, "notifications.dispatch_failed", err)
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func statusLabel(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusOutForDelivery:
		return "out for delivery"
	default:
		return string(status)
	}
}
