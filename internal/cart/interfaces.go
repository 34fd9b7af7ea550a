package cart

import (
	"context"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	UpdateTotal(ctx context.Context, cartID uuid.UUID, totalCents int64) error
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (bool, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindManyByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
