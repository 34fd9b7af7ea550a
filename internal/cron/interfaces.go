package cron

import (
	"context"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingOrderReader interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type partnerAssigner interface {
	Assign(ctx context.Context) (string, error)
}

type orderConfirmer interface {
	Confirm(ctx context.Context, orderID uuid.UUID, partnerID string) (*models.Order, error)
}

type jobMetrics interface {
	ObserveRun(job string, took time.Duration, err error)
}
