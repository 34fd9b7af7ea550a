package cart

import (
	"context"
	"errors"

	dbpkg "github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerConstraint is the unique index allowing one cart per customer.
const CustomerConstraint = "ux_carts_customer_id"

// ReasonCartConflict marks a cart write that lost to a concurrent write for
// the same customer. Retrying the request is safe.
const ReasonCartConflict = "cart_conflict"

// Repository persists carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCustomer loads the customer's cart with items in insertion order.
// A missing cart returns (nil, nil).
func (r *Repository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("customer_id = ?", customerID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// FindByCustomerForUpdate is FindByCustomer holding the cart row lock on
// postgres until the surrounding tx ends. A second checkout of the same
// cart waits here and then finds it gone.
func (r *Repository) FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var cart models.Cart
	if err := query.Where("customer_id = ?", customerID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Order("position ASC").
		Find(&cart.Items).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts an empty cart row.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(cart).Error; err != nil {
		if IsCustomerTaken(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was modified concurrently, please retry").
				WithReason(ReasonCartConflict)
		}
		return nil, err
	}
	return cart, nil
}

// UpdateTotal stores the recomputed cart total.
func (r *Repository) UpdateTotal(ctx context.Context, cartID uuid.UUID, totalCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("total_cents", totalCents).Error
}

// ReplaceItems atomically replaces cart items for the provided cart.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = cartID
		items[i].Position = i
	}
	return tx.Create(&items).Error
}

// DeleteByCustomer removes the customer's cart and its items. It reports
// whether a cart row was actually deleted.
func (r *Repository) DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id IN (?)", tx.Model(&models.Cart{}).Select("id").Where("customer_id = ?", customerID)).
		Delete(&models.CartItem{}).Error; err != nil {
		return false, err
	}
	res := tx.Where("customer_id = ?", customerID).Delete(&models.Cart{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IsCustomerTaken reports whether err is a collision on the one-cart-per-customer index.
func IsCustomerTaken(err error) bool {
	return dbpkg.IsUniqueViolation(err, CustomerConstraint) || dbpkg.IsUniqueViolation(err, "carts.customer_id")
}
