package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func percentOffer(value int64) *models.Offer {
	return &models.Offer{
		ID:           uuid.New(),
		Code:         "SAVE",
		DiscountType: enums.DiscountTypePercentage,
		Value:        decimal.NewFromInt(value),
		ValidFrom:    testNow.Add(-24 * time.Hour),
		ValidUntil:   testNow.Add(24 * time.Hour),
		IsActive:     true,
	}
}

func fixedOffer(value int64) *models.Offer {
	offer := percentOffer(0)
	offer.DiscountType = enums.DiscountTypeFixed
	offer.Value = decimal.NewFromInt(value)
	return offer
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		offer    func() *models.Offer
		subtotal int64
		discount int64
		reason   RejectReason
	}{
		{
			name:     "percentage",
			offer:    func() *models.Offer { return percentOffer(10) },
			subtotal: 60000,
			discount: 6000,
		},
		{
			name: "percentage capped",
			offer: func() *models.Offer {
				o := percentOffer(10)
				o.MaximumDiscountCents = int64Ptr(2500)
				return o
			},
			subtotal: 60000,
			discount: 2500,
		},
		{
			name:     "percentage rounds half up",
			offer:    func() *models.Offer { return percentOffer(15) },
			subtotal: 1010,
			discount: 152,
		},
		{
			name:     "fixed clamped to subtotal",
			offer:    func() *models.Offer { return fixedOffer(50000) },
			subtotal: 20000,
			discount: 20000,
		},
		{
			name: "inactive",
			offer: func() *models.Offer {
				o := percentOffer(10)
				o.IsActive = false
				return o
			},
			subtotal: 60000,
			reason:   RejectInactive,
		},
		{
			name: "not started",
			offer: func() *models.Offer {
				o := percentOffer(10)
				o.ValidFrom = testNow.Add(time.Hour)
				return o
			},
			subtotal: 60000,
			reason:   RejectNotStarted,
		},
		{
			name: "expired",
			offer: func() *models.Offer {
				o := percentOffer(10)
				o.ValidUntil = testNow.Add(-time.Hour)
				return o
			},
			subtotal: 60000,
			reason:   RejectExpired,
		},
		{
			name: "minimum order",
			offer: func() *models.Offer {
				o := fixedOffer(5000)
				o.MinimumOrderCents = 100000
				return o
			},
			subtotal: 60000,
			reason:   RejectMinimumOrderNotMet,
		},
		{
			name: "usage exhausted",
			offer: func() *models.Offer {
				o := fixedOffer(5000)
				o.UsageLimit = intPtr(3)
				o.UsedCount = 3
				return o
			},
			subtotal: 60000,
			reason:   RejectUsageLimitReached,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			discount, reason := Evaluate(tc.offer(), tc.subtotal, testNow)
			if reason != tc.reason {
				t.Fatalf("expected reason %q got %q", tc.reason, reason)
			}
			if discount != tc.discount {
				t.Fatalf("expected discount %d got %d", tc.discount, discount)
			}
		})
	}
}

type fakeStore struct {
	offer     *models.Offer
	windowed  bool
	findErr   error
	redeemOK  bool
	redeemed  int
	redeemErr error
}

func (f *fakeStore) WithTx(tx *gorm.DB) Store { return f }

func (f *fakeStore) FindByCode(ctx context.Context, code string) (*models.Offer, error) {
	return f.offer, f.findErr
}

func (f *fakeStore) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Offer, error) {
	if f.windowed && f.offer != nil && (!f.offer.IsActive || now.Before(f.offer.ValidFrom) || now.After(f.offer.ValidUntil)) {
		return nil, f.findErr
	}
	return f.offer, f.findErr
}

func (f *fakeStore) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	if f.redeemErr != nil {
		return false, f.redeemErr
	}
	if f.redeemOK {
		f.redeemed++
	}
	return f.redeemOK, nil
}

type recordingRejections struct {
	reasons []string
}

func (r *recordingRejections) IncOfferRejection(reason string) {
	r.reasons = append(r.reasons, reason)
}

func TestEngineApplyRedeemsQualifyingOffer(t *testing.T) {
	store := &fakeStore{offer: percentOffer(10), redeemOK: true}
	engine := NewEngine(store, nil, nil)

	result, err := engine.Apply(context.Background(), 60000, "save", testNow)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !result.Applied() || result.DiscountCents != 6000 {
		t.Fatalf("unexpected result %+v", result)
	}
	if store.redeemed != 1 {
		t.Fatalf("expected one redemption, got %d", store.redeemed)
	}
}

func TestEngineApplyEmptyCodeIsNoop(t *testing.T) {
	store := &fakeStore{redeemOK: true}
	result, err := NewEngine(store, nil, nil).Apply(context.Background(), 60000, "  ", testNow)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Applied() || result.Rejected != "" || store.redeemed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEngineRejectionsAreSilent(t *testing.T) {
	rejections := &recordingRejections{}

	result, err := NewEngine(&fakeStore{}, nil, rejections).Apply(context.Background(), 60000, "nope", testNow)
	if err != nil {
		t.Fatalf("missing code should not error: %v", err)
	}
	if result.Applied() || result.DiscountCents != 0 || result.Rejected != RejectNotFound {
		t.Fatalf("unexpected result %+v", result)
	}

	store := &fakeStore{offer: percentOffer(10), redeemOK: false}
	result, err = NewEngine(store, nil, rejections).Apply(context.Background(), 60000, "save", testNow)
	if err != nil {
		t.Fatalf("lost redemption should not error: %v", err)
	}
	if result.Applied() || result.Rejected != RejectUsageLimitReached {
		t.Fatalf("unexpected result %+v", result)
	}

	if len(rejections.reasons) != 2 || rejections.reasons[0] != string(RejectNotFound) || rejections.reasons[1] != string(RejectUsageLimitReached) {
		t.Fatalf("unexpected recorded reasons %v", rejections.reasons)
	}
}

func TestEngineExpiredCodeKeepsReason(t *testing.T) {
	expired := percentOffer(10)
	expired.ValidUntil = testNow.Add(-time.Hour)
	rejections := &recordingRejections{}

	result, err := NewEngine(&fakeStore{offer: expired, windowed: true}, nil, rejections).Quote(context.Background(), 60000, "save", testNow)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Applied() || result.Rejected != RejectExpired {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(rejections.reasons) != 1 || rejections.reasons[0] != string(RejectExpired) {
		t.Fatalf("unexpected recorded reasons %v", rejections.reasons)
	}
}

func TestEngineQuoteDoesNotRedeem(t *testing.T) {
	store := &fakeStore{offer: fixedOffer(5000), redeemOK: true}
	result, err := NewEngine(store, nil, nil).Quote(context.Background(), 60000, "SAVE", testNow)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !result.Applied() || result.DiscountCents != 5000 || store.redeemed != 0 {
		t.Fatalf("unexpected quote %+v redeemed=%d", result, store.redeemed)
	}
}

func TestEngineSurfacesStoreFailures(t *testing.T) {
	_, err := NewEngine(&fakeStore{findErr: errors.New("db down")}, nil, nil).Apply(context.Background(), 60000, "save", testNow)
	if err == nil {
		t.Fatal("expected store error")
	}
}
