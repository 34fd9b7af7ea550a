package offers

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RejectReason explains why a supplied code produced no discount. It is
// logged and counted, never returned to the customer.
type RejectReason string

const (
	RejectNotFound           RejectReason = "not_found"
	RejectInactive           RejectReason = "inactive"
	RejectNotStarted         RejectReason = "not_started"
	RejectExpired            RejectReason = "expired"
	RejectMinimumOrderNotMet RejectReason = "minimum_order_not_met"
	RejectUsageLimitReached  RejectReason = "usage_limit_reached"
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome of evaluating a code against a subtotal.
type Result struct {
	Offer         *models.Offer
	DiscountCents int64
	Rejected      RejectReason
}

// Applied reports whether the offer contributes a discount.
func (r Result) Applied() bool {
	return r.Offer != nil && r.Rejected == ""
}

type rejectionRecorder interface {
	IncOfferRejection(reason string)
}

// Engine evaluates and redeems discount codes.
type Engine struct {
	store   Store
	logg    *logger.Logger
	metrics rejectionRecorder
}

// NewEngine builds an engine over the offer store. logg and metrics may be nil.
func NewEngine(store Store, logg *logger.Logger, metrics rejectionRecorder) *Engine {
	return &Engine{store: store, logg: logg, metrics: metrics}
}

// WithTx returns an engine whose lookups and redemptions run on tx.
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	clone := *e
	clone.store = e.store.WithTx(tx)
	return &clone
}

// Quote evaluates code without redeeming it. An empty code yields a zero Result.
func (e *Engine) Quote(ctx context.Context, subtotalCents int64, code string, now time.Time) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, nil
	}

	offer, err := e.store.FindActiveByCode(ctx, code, now)
	if err != nil {
		return Result{}, err
	}
	if offer == nil {
		// Reload without the window filters so the rejection carries a reason.
		offer, err = e.store.FindByCode(ctx, code)
		if err != nil {
			return Result{}, err
		}
		if offer == nil {
			return e.reject(ctx, code, nil, RejectNotFound), nil
		}
	}

	discount, reason := Evaluate(offer, subtotalCents, now)
	if reason != "" {
		return e.reject(ctx, code, offer, reason), nil
	}
	return Result{Offer: offer, DiscountCents: discount}, nil
}

// Apply evaluates code and, when it qualifies, redeems one use. A redemption
// that loses the race for the last use is treated as a rejection.
func (e *Engine) Apply(ctx context.Context, subtotalCents int64, code string, now time.Time) (Result, error) {
	result, err := e.Quote(ctx, subtotalCents, code, now)
	if err != nil || !result.Applied() {
		return result, err
	}

	redeemed, err := e.store.IncrementUsage(ctx, result.Offer.ID)
	if err != nil {
		return Result{}, err
	}
	if !redeemed {
		return e.reject(ctx, code, result.Offer, RejectUsageLimitReached), nil
	}
	result.Offer.UsedCount++
	return result, nil
}

func (e *Engine) reject(ctx context.Context, code string, offer *models.Offer, reason RejectReason) Result {
	if e.metrics != nil {
		e.metrics.IncOfferRejection(string(reason))
	}
	if e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{
			"offer_code": code,
			"reason":     string(reason),
		})
		e.logg.Info(logCtx, "offers.code_rejected")
	}
	return Result{Offer: offer, Rejected: reason}
}

// Evaluate applies the offer rules to subtotalCents at now. The returned
// discount is clamped to [0, subtotalCents]; a non-empty reason means the
// offer does not apply.
func Evaluate(offer *models.Offer, subtotalCents int64, now time.Time) (int64, RejectReason) {
	switch {
	case !offer.IsActive:
		return 0, RejectInactive
	case now.Before(offer.ValidFrom):
		return 0, RejectNotStarted
	case now.After(offer.ValidUntil):
		return 0, RejectExpired
	case subtotalCents < offer.MinimumOrderCents:
		return 0, RejectMinimumOrderNotMet
	case offer.UsageLimit != nil && offer.UsedCount >= *offer.UsageLimit:
		return 0, RejectUsageLimitReached
	}

	var discount int64
	switch offer.DiscountType {
	case enums.DiscountTypePercentage:
		discount = decimal.NewFromInt(subtotalCents).Mul(offer.Value).Div(hundred).Round(0).IntPart()
		if offer.MaximumDiscountCents != nil && discount > *offer.MaximumDiscountCents {
			discount = *offer.MaximumDiscountCents
		}
	case enums.DiscountTypeFixed:
		discount = offer.Value.Round(0).IntPart()
	}

	if discount < 0 {
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount, ""
}
