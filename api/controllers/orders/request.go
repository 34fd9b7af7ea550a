package orders

import (
	"github.com/angelmondragon/grocer-backend/pkg/types"
)

type checkoutRequest struct {
	DeliveryAddress       types.DeliveryAddress `json:"deliveryAddress"`
	PaymentMethod         string                `json:"paymentMethod" validate:"required,oneof=cash_on_delivery card upi wallet"`
	DeliverySlot          string                `json:"deliverySlot" validate:"required,max=64"`
	Notes                 *string               `json:"notes,omitempty" validate:"omitempty,max=500"`
	OfferCode             *string               `json:"offerCode,omitempty" validate:"omitempty,max=40"`
	ExpectedSubtotalCents *int64                `json:"expectedSubtotalCents,omitempty" validate:"omitempty,min=0"`
	Email                 *string               `json:"email,omitempty" validate:"omitempty,email"`
}

type cancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type updateStatusRequest struct {
	Status  string  `json:"status" validate:"required"`
	Message *string `json:"message,omitempty" validate:"omitempty,max=500"`
}
