package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem holds the product snapshot taken when the item was added.
type CartItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID        uuid.UUID `gorm:"column:cart_id;type:uuid;not null"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name          string    `gorm:"column:name;not null"`
	Unit          string    `gorm:"column:unit;not null"`
	PriceCents    int64     `gorm:"column:price_cents;not null"`
	Quantity      int       `gorm:"column:quantity;not null"`
	SubtotalCents int64     `gorm:"column:subtotal_cents;not null"`
	Position      int       `gorm:"column:position;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
