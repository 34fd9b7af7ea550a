package offers

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/grocer-backend/internal/repo"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the offer persistence surface used by the engine.
type Store interface {
	WithTx(tx *gorm.DB) Store
	FindByCode(ctx context.Context, code string) (*models.Offer, error)
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Offer, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
}

// Repository reads offers and records redemptions.
type Repository struct {
	base repo.Base
}

// NewRepository builds an offer repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &Repository{base: r.base.Bind(tx)}
}

// FindByCode matches codes case-insensitively. A missing offer returns (nil, nil).
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Offer, error) {
	var offer models.Offer
	err := r.base.DB(ctx).
		Where("LOWER(code) = ?", normalizeCode(code)).
		First(&offer).Error
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return &offer, nil
}

// FindActiveByCode only returns offers that are switched on and inside their
// validity window at now.
func (r *Repository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Offer, error) {
	var offer models.Offer
	err := r.base.DB(ctx).
		Where("LOWER(code) = ?", normalizeCode(code)).
		Where("is_active = ?", true).
		Where("valid_from <= ? AND valid_until >= ?", now, now).
		First(&offer).Error
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active offer")
	}
	return &offer, nil
}

// IncrementUsage bumps used_count by one while it stays within usage_limit.
// It reports false when the limit was already reached.
func (r *Repository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		UpdateColumns(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "redeem offer")
	}
	return res.RowsAffected > 0, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
