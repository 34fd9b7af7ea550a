package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

// Service is the customer's notification inbox.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type inboxStore interface {
	Page(ctx context.Context, customerID uuid.UUID, unreadOnly bool, after *pagination.Cursor, limit int) ([]models.Notification, *pagination.Cursor, error)
	UnreadCount(ctx context.Context, customerID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, customerID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, customerID uuid.UUID, at time.Time) (int64, error)
}

type ListParams struct {
	CustomerID uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one inbox page. Cursor is empty on the last page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
	Unread int64                 `json:"unread"`
}

type inbox struct {
	store inboxStore
	now   func() time.Time
}

func NewService(store inboxStore) (Service, error) {
	if store == nil {
		return nil, errors.New("notification store required")
	}
	return &inbox{store: store, now: time.Now}, nil
}

func requireCustomer(id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return nil
}

func (s *inbox) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireCustomer(params.CustomerID); err != nil {
		return nil, err
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.store.Page(ctx, params.CustomerID, params.UnreadOnly, after, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.store.UnreadCount(ctx, params.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	out := &ListResult{Items: rows, Unread: unread}
	if out.Items == nil {
		out.Items = []models.Notification{}
	}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *inbox) MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error {
	if err := requireCustomer(customerID); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := s.store.MarkRead(ctx, customerID, notificationID, s.now().UTC())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inbox) MarkAllRead(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if err := requireCustomer(customerID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkAllRead(ctx, customerID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
