package checkout

import (
	"context"

	product "github.com/angelmondragon/grocer-backend/internal/products"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	WithTx(tx *gorm.DB) product.Ledger
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type partnerAssigner interface {
	Assign(ctx context.Context) (string, error)
}

type orderConfirmer interface {
	Confirm(ctx context.Context, orderID uuid.UUID, partnerID string) (*models.Order, error)
}

type confirmationNotifier interface {
	SendOrderConfirmation(ctx context.Context, order models.Order) bool
}

type outcomeRecorder interface {
	IncOutcome(result string)
}
