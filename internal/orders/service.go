package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Service exposes the order lifecycle operations.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error)
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	Track(ctx context.Context, orderNumber, email string) (*TrackingView, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID, partnerID string) (*models.Order, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	stock    stockRestorer
	logg     *logger.Logger
	notifier StatusNotifier
	metrics  restoreRecorder
	now      func() time.Time
}

// NewService builds the order lifecycle service. notifier and metrics may be nil.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, stock stockRestorer, logg *logger.Logger, notifier StatusNotifier, metrics restoreRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		stock:    stock,
		logg:     logg,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Get returns the order when the viewer may see it. Customers asking for
// someone else's order get NotFound.
func (s *service) Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if viewer.Role != enums.UserRoleAdmin && order.CustomerID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByCustomer(ctx, ListParams{
		CustomerID: customerID,
		Limit:      params.Limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}
	list := &OrderList{Orders: rows}
	if list.Orders == nil {
		list.Orders = []models.Order{}
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

// Track resolves the public tracking view. A wrong email is indistinguishable
// from an unknown order number.
func (s *service) Track(ctx context.Context, orderNumber, email string) (*TrackingView, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	email = strings.TrimSpace(email)
	if orderNumber == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and email are required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(order.CustomerEmail), email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return newTrackingView(order), nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.Status == enums.OrderStatusCancelled {
		return s.Cancel(ctx, CancelInput{
			OrderID: input.OrderID,
			Reason:  input.Message,
			Actor:   input.Actor,
			AsAdmin: true,
		})
	}

	order, err := s.transition(ctx, transitionSpec{
		orderID: input.OrderID,
		to:      input.Status,
		message: input.Message,
		actor:   input.Actor,
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, order)
	return order, nil
}

// Cancel moves the order to cancelled and then returns its units to stock.
// Restore failures are logged and counted but never undo the cancellation.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.AsAdmin && input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}

	order, err := s.transition(ctx, transitionSpec{
		orderID: input.OrderID,
		to:      enums.OrderStatusCancelled,
		message: input.Reason,
		reason:  input.Reason,
		actor:   input.Actor,
		guard: func(order *models.Order) error {
			if !input.AsAdmin && order.CustomerID != input.CustomerID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			if !Cancellable(order.Status) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
					WithDetails(map[string]any{"status": order.Status.String()})
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.restoreStock(ctx, order)
	s.notify(ctx, order)
	return order, nil
}

// Confirm moves a pending order to confirmed and records its delivery partner.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, partnerID string) (*models.Order, error) {
	if strings.TrimSpace(partnerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery partner required")
	}
	return s.transition(ctx, transitionSpec{
		orderID:   orderID,
		to:        enums.OrderStatusConfirmed,
		partnerID: &partnerID,
	})
}

type transitionSpec struct {
	orderID   uuid.UUID
	to        enums.OrderStatus
	message   *string
	reason    *string
	partnerID *string
	actor     *outbox.ActorRef
	guard     func(order *models.Order) error
}

func (s *service) transition(ctx context.Context, spec transitionSpec) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, spec.orderID)
		if err != nil {
			return err
		}
		if spec.guard != nil {
			if err := spec.guard(order); err != nil {
				return err
			}
		}
		if !CanTransition(order.Status, spec.to) {
			return stateConflict(order.Status, spec.to)
		}

		from := order.Status
		now := s.now().UTC()
		updates := map[string]any{
			"status":     spec.to,
			"updated_at": now,
		}
		switch spec.to {
		case enums.OrderStatusDelivered:
			updates["actual_delivery"] = now
			order.ActualDelivery = &now
		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
			order.CancelledAt = &now
			if reason := trimmed(spec.reason); reason != nil {
				updates["cancellation_reason"] = *reason
				order.CancellationReason = reason
			}
		}
		if spec.partnerID != nil {
			updates["delivery_partner_id"] = *spec.partnerID
			order.DeliveryPartnerID = spec.partnerID
		}

		ok, err := repo.UpdateStatus(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return stateConflict(from, spec.to)
		}
		order.Status = spec.to
		order.UpdatedAt = now

		message := DefaultMessage(spec.to)
		if custom := trimmed(spec.message); custom != nil {
			message = *custom
		}
		update := &models.OrderTrackingUpdate{
			OrderID:   order.ID,
			Status:    spec.to,
			Message:   message,
			CreatedAt: now,
		}
		if err := repo.AppendTracking(ctx, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking update")
		}
		order.TrackingUpdates = append(order.TrackingUpdates, *update)

		if err := s.outbox.Emit(ctx, tx, transitionEvent(order, from, now, spec.actor)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.ID.String())
		logCtx = s.logg.WithField(logCtx, "status", result.Status.String())
		s.logg.Info(logCtx, "orders.status_changed")
	}
	return result, nil
}

func transitionEvent(order *models.Order, from enums.OrderStatus, at time.Time, actor *outbox.ActorRef) outbox.DomainEvent {
	if order.Status == enums.OrderStatusCancelled {
		reason := ""
		if order.CancellationReason != nil {
			reason = *order.CancellationReason
		}
		return outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    at,
			Data: payloads.OrderCanceledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				FromStatus:  from,
				CanceledAt:  at,
				Reason:      reason,
				Items:       ItemRefs(order.Items),
			},
		}
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    at,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:           order.ID,
			OrderNumber:       order.OrderNumber,
			CustomerID:        order.CustomerID,
			FromStatus:        from,
			ToStatus:          order.Status,
			DeliveryPartnerID: order.DeliveryPartnerID,
			ChangedAt:         at,
		},
	}
}

// ItemRefs projects order items onto the event item references.
func ItemRefs(items []models.OrderItem) []payloads.OrderItemRef {
	refs := make([]payloads.OrderItemRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, payloads.OrderItemRef{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return refs
}

func (s *service) restoreStock(ctx context.Context, order *models.Order) {
	var errs error
	for _, item := range order.Items {
		if err := s.stock.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
			if s.metrics != nil {
				s.metrics.IncStockRestoreFailure()
			}
		}
	}
	if errs != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "orders.stock_restore_failed", errs)
	}
}

func (s *service) notify(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.SendOrderUpdate(ctx, *order) && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Warn(logCtx, "orders.notification_dropped")
	}
}

func stateConflict(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{
			"from": from.String(),
			"to":   to.String(),
		})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
