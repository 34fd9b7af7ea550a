package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/types"
)

// Order is the immutable record of a completed checkout plus its lifecycle
// state. Orders are never deleted.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string                `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID         uuid.UUID             `gorm:"column:customer_id;type:uuid;not null"`
	CustomerEmail      string                `gorm:"column:customer_email;not null"`
	SubtotalCents      int64                 `gorm:"column:subtotal_cents;not null"`
	TaxCents           int64                 `gorm:"column:tax_cents;not null"`
	DeliveryFeeCents   int64                 `gorm:"column:delivery_fee_cents;not null"`
	DiscountCents      int64                 `gorm:"column:discount_cents;not null"`
	TotalCents         int64                 `gorm:"column:total_cents;not null"`
	OfferID            *uuid.UUID            `gorm:"column:offer_id;type:uuid"`
	OfferCode          *string               `gorm:"column:offer_code"`
	DeliveryAddress    types.DeliveryAddress `gorm:"column:delivery_address;type:jsonb;serializer:json;not null"`
	PaymentMethod      enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null"`
	DeliverySlot       string                `gorm:"column:delivery_slot;not null"`
	Notes              *string               `gorm:"column:notes"`
	Status             enums.OrderStatus     `gorm:"column:status;type:order_status;not null"`
	EstimatedDelivery  *time.Time            `gorm:"column:estimated_delivery"`
	ActualDelivery     *time.Time            `gorm:"column:actual_delivery"`
	DeliveryPartnerID  *string               `gorm:"column:delivery_partner_id"`
	CancelledAt        *time.Time            `gorm:"column:cancelled_at"`
	CancellationReason *string               `gorm:"column:cancellation_reason"`
	Items              []OrderItem           `gorm:"foreignKey:OrderID"`
	TrackingUpdates    []OrderTrackingUpdate `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
