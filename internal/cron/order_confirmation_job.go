package cron

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"go.uber.org/multierr"
)

const (
	OrderConfirmationJobName = "order-confirmation"

	defaultPendingAge   = 2 * time.Minute
	defaultPendingBatch = 100
)

// OrderConfirmationJobParams configure the job that confirms orders whose
// post-checkout confirmation did not go through.
type OrderConfirmationJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderReader
	Assigner  partnerAssigner
	Confirmer orderConfirmer
	MinAge    time.Duration
	BatchSize int
}

// NewOrderConfirmationJob builds the pending order confirmation job.
func NewOrderConfirmationJob(params OrderConfirmationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Assigner == nil {
		return nil, fmt.Errorf("delivery assigner required")
	}
	if params.Confirmer == nil {
		return nil, fmt.Errorf("order confirmer required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultPendingAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPendingBatch
	}
	return &orderConfirmationJob{
		logg:      params.Logger,
		orders:    params.Orders,
		assigner:  params.Assigner,
		confirmer: params.Confirmer,
		minAge:    minAge,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type orderConfirmationJob struct {
	logg      *logger.Logger
	orders    pendingOrderReader
	assigner  partnerAssigner
	confirmer orderConfirmer
	minAge    time.Duration
	batch     int
	now       func() time.Time
}

func (j *orderConfirmationJob) Name() string { return OrderConfirmationJobName }

func (j *orderConfirmationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	pending, err := j.orders.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	var errs error
	confirmed, skipped := 0, 0
	for _, order := range pending {
		partner, err := j.assigner.Assign(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("assign partner for %s: %w", order.ID, err))
			continue
		}
		if _, err := j.confirmer.Confirm(ctx, order.ID, partner); err != nil {
			// The customer may have cancelled since the order was listed.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				skipped++
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("confirm order %s: %w", order.ID, err))
			continue
		}
		confirmed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending":   len(pending),
		"confirmed": confirmed,
		"skipped":   skipped,
	})
	j.logg.Info(logCtx, "cron.pending_orders_confirmed")
	return errs
}
