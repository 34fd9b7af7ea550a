package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

// Store persists the in-app notifications table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) owned(ctx context.Context, customerID uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("customer_id = ?", customerID)
}

// Page returns one page of a customer's notifications, newest first, plus
// the cursor of the following page.
func (s *Store) Page(ctx context.Context, customerID uuid.UUID, unreadOnly bool, after *pagination.Cursor, limit int) ([]models.Notification, *pagination.Cursor, error) {
	q := s.owned(ctx, customerID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := pagination.Keyset(q, after, limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (s *Store) UnreadCount(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var n int64
	err := s.owned(ctx, customerID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead stamps read_at on one notification if it is still unread. It
// reports whether the customer owns a notification with that id, so a
// repeated call on a read notification still succeeds.
func (s *Store) MarkRead(ctx context.Context, customerID, id uuid.UUID, at time.Time) (bool, error) {
	res := s.owned(ctx, customerID).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	err := s.owned(ctx, customerID).Where("id = ?", id).Limit(1).Count(&n).Error
	return n > 0, err
}

func (s *Store) MarkAllRead(ctx context.Context, customerID uuid.UUID, at time.Time) (int64, error) {
	res := s.owned(ctx, customerID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore removes notifications read before cutoff. Unread ones
// are kept whatever their age. A nil tx uses the store's handle.
func (s *Store) DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = s.db
	}
	res := tx.WithContext(ctx).Where("read_at IS NOT NULL AND read_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
