package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultRetention             = 30 * 24 * time.Hour
	outboxTerminalAttempts       = 10
	OutboxRetentionJobName       = "outbox-retention"
	NotificationRetentionJobName = "notification-retention"
)

// PurgeFunc deletes rows older than cutoff and reports how many went.
type PurgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// RetentionJobParams configure a job that purges rows past a retention window.
type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	DB        txRunner
	Purge     PurgeFunc
	Retention time.Duration
}

type outboxPurger interface {
	Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts int) (int64, error)
}

type notificationPurger interface {
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxPurge drops published outbox rows and rows that exhausted their
// publish attempts.
func OutboxPurge(repo outboxPurger, maxAttempts int) PurgeFunc {
	if maxAttempts <= 0 {
		maxAttempts = outboxTerminalAttempts
	}
	return func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.Purge(ctx, tx, cutoff, maxAttempts)
	}
}

// NotificationPurge drops read in-app notifications.
func NotificationPurge(repo notificationPurger) PurgeFunc {
	return repo.DeleteReadBefore
}

// NewRetentionJob builds a purge job.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("job name required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Purge == nil {
		return nil, fmt.Errorf("purge func required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		db:        params.DB,
		purge:     params.Purge,
		retention: retention,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	purge     PurgeFunc
	retention time.Duration
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "cron.retention_complete")
	return nil
}
