package orders

import (
	"time"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/types"
	"github.com/google/uuid"
)

// Viewer identifies who is reading an order.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// UpdateStatusInput drives an admin lifecycle change.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Message *string
	Actor   *outbox.ActorRef
}

// CancelInput drives a cancellation. Admins may cancel any order; customers
// only their own.
type CancelInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Reason     *string
	Actor      *outbox.ActorRef
	AsAdmin    bool
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// TrackingView is the public tracking contract.
type TrackingView struct {
	OrderNumber       string                `json:"orderNumber"`
	Status            enums.OrderStatus     `json:"status"`
	TrackingUpdates   []TrackingUpdateView  `json:"trackingUpdates"`
	EstimatedDelivery *time.Time            `json:"estimatedDelivery,omitempty"`
	Total             int64                 `json:"total"`
	Items             []TrackingItemView    `json:"items"`
	DeliveryAddress   types.DeliveryAddress `json:"deliveryAddress"`
}

// TrackingUpdateView is one public timeline entry.
type TrackingUpdateView struct {
	Status    enums.OrderStatus `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// TrackingItemView is the public item line.
type TrackingItemView struct {
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
	Subtotal   int64  `json:"subtotalCents"`
}

func newTrackingView(order *models.Order) *TrackingView {
	view := &TrackingView{
		OrderNumber:       order.OrderNumber,
		Status:            order.Status,
		EstimatedDelivery: order.EstimatedDelivery,
		Total:             order.TotalCents,
		DeliveryAddress:   order.DeliveryAddress,
		TrackingUpdates:   make([]TrackingUpdateView, 0, len(order.TrackingUpdates)),
		Items:             make([]TrackingItemView, 0, len(order.Items)),
	}
	for _, update := range order.TrackingUpdates {
		view.TrackingUpdates = append(view.TrackingUpdates, TrackingUpdateView{
			Status:    update.Status,
			Message:   update.Message,
			Timestamp: update.CreatedAt,
		})
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, TrackingItemView{
			Name:       item.Name,
			Unit:       item.Unit,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
			Subtotal:   item.SubtotalCents,
		})
	}
	return view
}
