package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// Offer is a discount code. Value is a percentage for percentage offers and
// minor currency units for fixed offers.
type Offer struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                 string             `gorm:"column:code;not null"`
	Description          *string            `gorm:"column:description"`
	DiscountType         enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	Value                decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	MinimumOrderCents    int64              `gorm:"column:minimum_order_cents;not null"`
	MaximumDiscountCents *int64             `gorm:"column:maximum_discount_cents"`
	UsageLimit           *int               `gorm:"column:usage_limit"`
	UsedCount            int                `gorm:"column:used_count;not null"`
	ValidFrom            time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil           time.Time          `gorm:"column:valid_until;not null"`
	IsActive             bool               `gorm:"column:is_active;not null"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
