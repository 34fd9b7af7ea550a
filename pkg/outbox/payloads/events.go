package payloads

import (
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID      `json:"order_id" validate:"required"`
	OrderNumber   string         `json:"order_number" validate:"required"`
	CustomerID    uuid.UUID      `json:"customer_id" validate:"required"`
	TotalCents    int64          `json:"total_cents"`
	DiscountCents int64          `json:"discount_cents"`
	OfferCode     *string        `json:"offer_code,omitempty"`
	Items         []OrderItemRef `json:"items" validate:"required,min=1,dive"`
}

// OrderItemRef is the product/quantity pair carried by order events.
type OrderItemRef struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// OrderStatusChangedEvent is emitted for every forward lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID           uuid.UUID         `json:"order_id" validate:"required"`
	OrderNumber       string            `json:"order_number" validate:"required"`
	CustomerID        uuid.UUID         `json:"customer_id" validate:"required"`
	FromStatus        enums.OrderStatus `json:"from_status"`
	ToStatus          enums.OrderStatus `json:"to_status" validate:"required"`
	DeliveryPartnerID *string           `json:"delivery_partner_id,omitempty"`
	ChangedAt         time.Time         `json:"changed_at"`
}

// OrderCanceledEvent is emitted when an order is cancelled before packing.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID         `json:"order_id" validate:"required"`
	OrderNumber string            `json:"order_number" validate:"required"`
	CustomerID  uuid.UUID         `json:"customer_id" validate:"required"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	CanceledAt  time.Time         `json:"canceled_at"`
	Reason      string            `json:"reason,omitempty"`
	Items       []OrderItemRef    `json:"items" validate:"dive"`
}

// NotificationRequestedEvent asks the notification worker to alert a customer.
type NotificationRequestedEvent struct {
	OrderID       uuid.UUID              `json:"order_id" validate:"required"`
	OrderNumber   string                 `json:"order_number" validate:"required"`
	CustomerID    uuid.UUID              `json:"customer_id" validate:"required"`
	CustomerEmail string                 `json:"customer_email"`
	Type          enums.NotificationType `json:"type" validate:"required"`
	Title         string                 `json:"title" validate:"required"`
	Message       string                 `json:"message"`
	Link          *string                `json:"link,omitempty"`
}
