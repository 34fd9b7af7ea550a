package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository captures the persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByCustomer(ctx context.Context, params ListParams) ([]models.Order, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	AppendTracking(ctx context.Context, update *models.OrderTrackingUpdate) error
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ListParams drives cursor pagination over a customer's orders.
type ListParams struct {
	CustomerID uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockRestorer interface {
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

// StatusNotifier is told about lifecycle changes after they commit.
type StatusNotifier interface {
	SendOrderUpdate(ctx context.Context, order models.Order) bool
}

type restoreRecorder interface {
	IncStockRestoreFailure()
}
