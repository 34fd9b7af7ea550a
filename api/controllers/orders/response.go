package orders

import (
	"time"

	"github.com/google/uuid"

	checkoutsvc "github.com/angelmondragon/grocer-backend/internal/checkout"
	internalorders "github.com/angelmondragon/grocer-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/grocer-backend/pkg/checkout"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/types"
)

type orderResponse struct {
	ID                 uuid.UUID             `json:"id"`
	OrderNumber        string                `json:"orderNumber"`
	Status             enums.OrderStatus     `json:"status"`
	CustomerEmail      string                `json:"customerEmail"`
	Items              []orderItemView       `json:"items"`
	SubtotalCents      int64                 `json:"subtotalCents"`
	TaxCents           int64                 `json:"taxCents"`
	DeliveryFeeCents   int64                 `json:"deliveryFeeCents"`
	DiscountCents      int64                 `json:"discountCents"`
	TotalCents         int64                 `json:"totalCents"`
	OfferCode          *string               `json:"offerCode,omitempty"`
	DeliveryAddress    types.DeliveryAddress `json:"deliveryAddress"`
	PaymentMethod      enums.PaymentMethod   `json:"paymentMethod"`
	DeliverySlot       string                `json:"deliverySlot"`
	Notes              *string               `json:"notes,omitempty"`
	EstimatedDelivery  *time.Time            `json:"estimatedDelivery,omitempty"`
	ActualDelivery     *time.Time            `json:"actualDelivery,omitempty"`
	DeliveryPartnerID  *string               `json:"deliveryPartnerId,omitempty"`
	CancelledAt        *time.Time            `json:"cancelledAt,omitempty"`
	CancellationReason *string               `json:"cancellationReason,omitempty"`
	TrackingUpdates    []trackingUpdateView  `json:"trackingUpdates"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

type orderItemView struct {
	ProductID     uuid.UUID `json:"productId"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	PriceCents    int64     `json:"priceCents"`
	Quantity      int       `json:"quantity"`
	SubtotalCents int64     `json:"subtotalCents"`
}

type trackingUpdateView struct {
	Status    enums.OrderStatus `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

type checkoutResponse struct {
	Order        orderResponse             `json:"order"`
	Totals       pkgcheckout.Totals        `json:"totals"`
	OfferApplied bool                      `json:"offerApplied"`
	PriceChanged []checkoutsvc.PriceChange `json:"priceChanged"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{Items: []orderItemView{}, TrackingUpdates: []trackingUpdateView{}}
	}
	resp := orderResponse{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		CustomerEmail:      order.CustomerEmail,
		SubtotalCents:      order.SubtotalCents,
		TaxCents:           order.TaxCents,
		DeliveryFeeCents:   order.DeliveryFeeCents,
		DiscountCents:      order.DiscountCents,
		TotalCents:         order.TotalCents,
		OfferCode:          order.OfferCode,
		DeliveryAddress:    order.DeliveryAddress,
		PaymentMethod:      order.PaymentMethod,
		DeliverySlot:       order.DeliverySlot,
		Notes:              order.Notes,
		EstimatedDelivery:  order.EstimatedDelivery,
		ActualDelivery:     order.ActualDelivery,
		DeliveryPartnerID:  order.DeliveryPartnerID,
		CancelledAt:        order.CancelledAt,
		CancellationReason: order.CancellationReason,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
		Items:              make([]orderItemView, 0, len(order.Items)),
		TrackingUpdates:    make([]trackingUpdateView, 0, len(order.TrackingUpdates)),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemView{
			ProductID:     item.ProductID,
			Name:          item.Name,
			Unit:          item.Unit,
			PriceCents:    item.PriceCents,
			Quantity:      item.Quantity,
			SubtotalCents: item.SubtotalCents,
		})
	}
	for _, update := range order.TrackingUpdates {
		resp.TrackingUpdates = append(resp.TrackingUpdates, trackingUpdateView{
			Status:    update.Status,
			Message:   update.Message,
			Timestamp: update.CreatedAt,
		})
	}
	return resp
}

func newOrderListResponse(list *internalorders.OrderList) orderListResponse {
	resp := orderListResponse{Orders: []orderResponse{}}
	if list == nil {
		return resp
	}
	resp.NextCursor = list.NextCursor
	for i := range list.Orders {
		resp.Orders = append(resp.Orders, newOrderResponse(&list.Orders[i]))
	}
	return resp
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	resp := checkoutResponse{
		Order:        newOrderResponse(result.Order),
		Totals:       result.Totals,
		OfferApplied: result.OfferApplied,
		PriceChanged: result.PriceChanges,
	}
	if resp.PriceChanged == nil {
		resp.PriceChanged = []checkoutsvc.PriceChange{}
	}
	return resp
}
