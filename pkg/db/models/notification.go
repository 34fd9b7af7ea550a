package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to a customer.
type Notification struct {
	ID         uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID uuid.UUID              `gorm:"type:uuid;not null" json:"customerId"`
	OrderID    *uuid.UUID             `gorm:"type:uuid" json:"orderId,omitempty"`
	Type       enums.NotificationType `gorm:"type:notification_type;not null" json:"type"`
	Title      string                 `gorm:"type:text;not null" json:"title"`
	Message    string                 `gorm:"type:text;not null" json:"message"`
	Link       *string                `gorm:"type:text" json:"link,omitempty"`
	ReadAt     *time.Time             `gorm:"type:timestamptz" json:"readAt,omitempty"`
	CreatedAt  time.Time              `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}
