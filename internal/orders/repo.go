package orders

import (
	"context"
	"errors"
	"time"

	dbpkg "github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderNumberConstraint is the unique index guarding order numbers.
const OrderNumberConstraint = "ux_orders_order_number"

// IsOrderNumberTaken reports whether err is a collision on the order number index.
func IsOrderNumberTaken(err error) bool {
	return dbpkg.IsUniqueViolation(err, OrderNumberConstraint) || dbpkg.IsUniqueViolation(err, "orders.order_number")
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order with its item snapshot and initial tracking rows.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	tx := r.db.WithContext(ctx)
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}
	if len(order.Items) > 0 {
		if err := tx.Create(&order.Items).Error; err != nil {
			return err
		}
	}
	for i := range order.TrackingUpdates {
		order.TrackingUpdates[i].ID = uuid.New()
		order.TrackingUpdates[i].OrderID = order.ID
		order.TrackingUpdates[i].Sequence = i + 1
	}
	if len(order.TrackingUpdates) > 0 {
		if err := tx.Create(&order.TrackingUpdates).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(r.withDetails(r.db.WithContext(ctx)).Where("id = ?", id))
}

// FindByIDForUpdate locks the order row on postgres for the rest of the tx.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	order, err := r.findOne(query.Where("id = ?", id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(r.withDetails(r.db.WithContext(ctx)).Where("order_number = ?", orderNumber))
}

func (r *repository) ListByCustomer(ctx context.Context, params ListParams) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("customer_id = ?", params.CustomerID)

	var rows []models.Order
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// UpdateStatus applies updates only while the order is still in from. It
// reports false when another writer moved the order first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendTracking inserts the next timeline entry. Existing entries are never touched.
func (r *repository) AppendTracking(ctx context.Context, update *models.OrderTrackingUpdate) error {
	var maxSeq int
	if err := r.db.WithContext(ctx).
		Model(&models.OrderTrackingUpdate{}).
		Where("order_id = ?", update.OrderID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}
	update.ID = uuid.New()
	update.Sequence = maxSeq + 1
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(update).Error
}

// ListPendingBefore returns orders still pending that were created before cutoff, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("TrackingUpdates", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") })
}

func (r *repository) loadDetails(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("position ASC").Find(&order.Items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("sequence ASC").Find(&order.TrackingUpdates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tracking updates")
	}
	return nil
}

func (r *repository) findOne(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}
