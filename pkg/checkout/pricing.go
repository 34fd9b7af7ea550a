package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocer-backend/pkg/config"
)

var hundred = decimal.NewFromInt(100)

// Pricing holds the tax and delivery rules applied at checkout.
type Pricing struct {
	TaxRatePercent        decimal.Decimal
	FreeDeliveryThreshold int64
	DeliveryFee           int64
}

// Totals is the monetary breakdown of an order, in minor units.
type Totals struct {
	SubtotalCents    int64 `json:"subtotalCents"`
	TaxCents         int64 `json:"taxCents"`
	DeliveryFeeCents int64 `json:"deliveryFeeCents"`
	DiscountCents    int64 `json:"discountCents"`
	TotalCents       int64 `json:"totalCents"`
}

// NewPricing parses the configured tax rate.
func NewPricing(cfg config.CheckoutConfig) (Pricing, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.TaxRatePercent))
	if err != nil {
		return Pricing{}, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRatePercent, err)
	}
	if rate.IsNegative() {
		return Pricing{}, fmt.Errorf("tax rate must be non-negative")
	}
	return Pricing{
		TaxRatePercent:        rate,
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
	}, nil
}

// Tax rounds subtotal * rate half away from zero.
func (p Pricing) Tax(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(p.TaxRatePercent).Div(hundred).Round(0).IntPart()
}

// Fee is waived once the subtotal reaches the free delivery threshold.
func (p Pricing) Fee(subtotalCents int64) int64 {
	if subtotalCents >= p.FreeDeliveryThreshold {
		return 0
	}
	return p.DeliveryFee
}

// Compute builds the totals for subtotal after an already clamped discount.
// The total never goes below zero.
func (p Pricing) Compute(subtotalCents, discountCents int64) Totals {
	totals := Totals{
		SubtotalCents:    subtotalCents,
		TaxCents:         p.Tax(subtotalCents),
		DeliveryFeeCents: p.Fee(subtotalCents),
		DiscountCents:    discountCents,
	}
	totals.TotalCents = totals.SubtotalCents + totals.TaxCents + totals.DeliveryFeeCents - totals.DiscountCents
	if totals.TotalCents < 0 {
		totals.TotalCents = 0
	}
	return totals
}
