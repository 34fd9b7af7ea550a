package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubOrdersRepo struct {
	orders  map[uuid.UUID]*models.Order
	updates []map[string]any
}

func newStubOrdersRepo(orders ...*models.Order) *stubOrdersRepo {
	repo := &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubOrdersRepo) clone(id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dup := *order
	dup.Items = append([]models.OrderItem(nil), order.Items...)
	dup.TrackingUpdates = append([]models.OrderTrackingUpdate(nil), order.TrackingUpdates...)
	return &dup, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.clone(id)
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.clone(id)
}

func (s *stubOrdersRepo) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	for id, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return s.clone(id)
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrdersRepo) ListByCustomer(ctx context.Context, params ListParams) ([]models.Order, *pagination.Cursor, error) {
	var rows []models.Order
	for _, order := range s.orders {
		if order.CustomerID == params.CustomerID {
			rows = append(rows, *order)
		}
	}
	return rows, nil, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = updates["status"].(enums.OrderStatus)
	s.updates = append(s.updates, updates)
	return true, nil
}

func (s *stubOrdersRepo) AppendTracking(ctx context.Context, update *models.OrderTrackingUpdate) error {
	order := s.orders[update.OrderID]
	update.Sequence = len(order.TrackingUpdates) + 1
	order.TrackingUpdates = append(order.TrackingUpdates, *update)
	return nil
}

func (s *stubOrdersRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type recordingStock struct {
	restored map[uuid.UUID]int
	failFor  uuid.UUID
}

func (r *recordingStock) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if id == r.failFor {
		return errors.New("catalog unavailable")
	}
	if r.restored == nil {
		r.restored = map[uuid.UUID]int{}
	}
	r.restored[id] += qty
	return nil
}

type countingRestoreFailures struct{ count int }

func (c *countingRestoreFailures) IncStockRestoreFailure() { c.count++ }

type recordingNotifier struct{ orders []models.Order }

func (r *recordingNotifier) SendOrderUpdate(ctx context.Context, order models.Order) bool {
	r.orders = append(r.orders, order)
	return true
}

func newOrder(status enums.OrderStatus, qty int) *models.Order {
	id := uuid.New()
	return &models.Order{
		ID:            id,
		OrderNumber:   "ORD20260314-0042",
		CustomerID:    uuid.New(),
		CustomerEmail: "Asha@Example.com",
		Status:        status,
		TotalCents:    63000,
		Items: []models.OrderItem{{
			ID:            uuid.New(),
			OrderID:       id,
			ProductID:     uuid.New(),
			Name:          "Basmati Rice",
			Unit:          "kg",
			PriceCents:    30000,
			Quantity:      qty,
			SubtotalCents: 30000 * int64(qty),
		}},
		TrackingUpdates: []models.OrderTrackingUpdate{{
			OrderID:  id,
			Sequence: 1,
			Status:   enums.OrderStatusPending,
			Message:  "Order placed",
		}},
	}
}

type serviceFixture struct {
	svc      Service
	repo     *stubOrdersRepo
	outbox   *recordingOutbox
	stock    *recordingStock
	failures *countingRestoreFailures
	notifier *recordingNotifier
}

func newFixture(t *testing.T, orders ...*models.Order) serviceFixture {
	t.Helper()
	f := serviceFixture{
		repo:     newStubOrdersRepo(orders...),
		outbox:   &recordingOutbox{},
		stock:    &recordingStock{},
		failures: &countingRestoreFailures{},
		notifier: &recordingNotifier{},
	}
	svc, err := NewService(f.repo, stubTxRunner{}, f.outbox, f.stock, nil, f.notifier, f.failures)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func TestCancelRestoresStock(t *testing.T) {
	order := newOrder(enums.OrderStatusConfirmed, 2)
	f := newFixture(t, order)
	reason := "ordered twice"

	cancelled, err := f.svc.Cancel(context.Background(), CancelInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     &reason,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil || cancelled.CancellationReason == nil || *cancelled.CancellationReason != reason {
		t.Fatalf("expected cancellation metadata, got %+v", cancelled)
	}
	if got := f.stock.restored[order.Items[0].ProductID]; got != 2 {
		t.Fatalf("expected 2 units restored, got %d", got)
	}
	last := cancelled.TrackingUpdates[len(cancelled.TrackingUpdates)-1]
	if last.Status != enums.OrderStatusCancelled || last.Sequence != 2 {
		t.Fatalf("unexpected tracking update %+v", last)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderCanceled {
		t.Fatalf("expected order_canceled event, got %+v", f.outbox.events)
	}
	if len(f.notifier.orders) != 1 {
		t.Fatalf("expected customer notification, got %d", len(f.notifier.orders))
	}
}

func TestCancelRejectedOnceOutForDelivery(t *testing.T) {
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPacked,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	} {
		order := newOrder(status, 2)
		f := newFixture(t, order)

		_, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, CustomerID: order.CustomerID})
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("%s: expected state conflict, got %v", status, err)
		}
		stored := f.repo.orders[order.ID]
		if stored.Status != status || len(stored.TrackingUpdates) != 1 {
			t.Fatalf("%s: order changed: %+v", status, stored)
		}
		if len(f.stock.restored) != 0 || len(f.outbox.events) != 0 {
			t.Fatalf("%s: unexpected side effects", status)
		}
	}
}

func TestCancelOtherCustomersOrderIsNotFound(t *testing.T) {
	order := newOrder(enums.OrderStatusPending, 1)
	f := newFixture(t, order)

	_, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, CustomerID: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelRestoreFailureIsNotFatal(t *testing.T) {
	order := newOrder(enums.OrderStatusPending, 3)
	f := newFixture(t, order)
	f.stock.failFor = order.Items[0].ProductID

	cancelled, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, AsAdmin: true})
	if err != nil {
		t.Fatalf("cancel should succeed: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if f.failures.count != 1 {
		t.Fatalf("expected one restore failure recorded, got %d", f.failures.count)
	}
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	order := newOrder(enums.OrderStatusPending, 1)
	f := newFixture(t, order)
	ctx := context.Background()

	steps := []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusPacked,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	}
	var last *models.Order
	for _, next := range steps {
		updated, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: next})
		if err != nil {
			t.Fatalf("update to %s: %v", next, err)
		}
		last = updated
	}
	if last.ActualDelivery == nil {
		t.Fatal("expected actual delivery to be set")
	}
	if len(last.TrackingUpdates) != len(steps)+1 {
		t.Fatalf("expected %d tracking updates, got %d", len(steps)+1, len(last.TrackingUpdates))
	}
	for i, update := range last.TrackingUpdates {
		if update.Sequence != i+1 {
			t.Fatalf("tracking update %d has sequence %d", i, update.Sequence)
		}
	}
	if len(f.outbox.events) != len(steps) {
		t.Fatalf("expected %d events, got %d", len(steps), len(f.outbox.events))
	}

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusPreparing})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict leaving delivered, got %v", err)
	}
}

func TestUpdateStatusSkippingStepsIsRejected(t *testing.T) {
	order := newOrder(enums.OrderStatusPending, 1)
	f := newFixture(t, order)

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusDelivered})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	_, err = f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: "shipped"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusToCancelledRestoresStock(t *testing.T) {
	order := newOrder(enums.OrderStatusPreparing, 4)
	f := newFixture(t, order)

	updated, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if f.stock.restored[order.Items[0].ProductID] != 4 {
		t.Fatalf("expected 4 units restored, got %d", f.stock.restored[order.Items[0].ProductID])
	}
}

func TestConfirmAssignsPartner(t *testing.T) {
	order := newOrder(enums.OrderStatusPending, 1)
	f := newFixture(t, order)

	confirmed, err := f.svc.Confirm(context.Background(), order.ID, "partner-2")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.DeliveryPartnerID == nil || *confirmed.DeliveryPartnerID != "partner-2" {
		t.Fatalf("expected partner-2, got %v", confirmed.DeliveryPartnerID)
	}
	if f.repo.updates[0]["delivery_partner_id"] != "partner-2" {
		t.Fatalf("partner not persisted: %+v", f.repo.updates[0])
	}
	if len(f.notifier.orders) != 0 {
		t.Fatal("confirmation should not send an update notification")
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	order := newOrder(enums.OrderStatusPending, 1)
	f := newFixture(t, order)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, order.ID, Viewer{UserID: order.CustomerID, Role: enums.UserRoleCustomer}); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := f.svc.Get(ctx, order.ID, Viewer{UserID: uuid.New(), Role: enums.UserRoleCustomer}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	if _, err := f.svc.Get(ctx, order.ID, Viewer{UserID: uuid.New(), Role: enums.UserRoleAdmin}); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestTrackMatchesEmailCaseInsensitively(t *testing.T) {
	order := newOrder(enums.OrderStatusConfirmed, 2)
	f := newFixture(t, order)
	ctx := context.Background()

	view, err := f.svc.Track(ctx, order.OrderNumber, " asha@example.COM ")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if view.OrderNumber != order.OrderNumber || view.Status != enums.OrderStatusConfirmed || view.Total != 63000 {
		t.Fatalf("unexpected view %+v", view)
	}
	if len(view.Items) != 1 || len(view.TrackingUpdates) != 1 {
		t.Fatalf("unexpected view contents %+v", view)
	}

	if _, err := f.svc.Track(ctx, order.OrderNumber, "someone@example.com"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for wrong email, got %v", err)
	}
	if _, err := f.svc.Track(ctx, "ORD00000000-0000", "asha@example.com"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), uuid.New(), pagination.Params{Cursor: "%%%"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
