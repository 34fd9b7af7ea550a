package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// OrderTrackingUpdate is one entry of an order's append-only timeline.
type OrderTrackingUpdate struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Sequence  int               `gorm:"column:sequence;not null"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	Message   string            `gorm:"column:message;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;not null"`
}
