package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/angelmondragon/grocer-backend/internal/cart"
)

// addItemRequest is the body of POST /cart/add. Name, price and unit are the
// values the customer saw; omitted values come from the live product.
type addItemRequest struct {
	ProductID  uuid.UUID `json:"productId"`
	Quantity   int       `json:"quantity" validate:"required,min=1,max=999"`
	Name       *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	PriceCents *int64    `json:"priceCents,omitempty" validate:"omitempty,min=0"`
	Unit       *string   `json:"unit,omitempty" validate:"omitempty,max=40"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=999"`
}

func toAddItemInput(payload addItemRequest) cartsvc.AddItemInput {
	return cartsvc.AddItemInput{
		ProductID:  payload.ProductID,
		Quantity:   payload.Quantity,
		Name:       payload.Name,
		PriceCents: payload.PriceCents,
		Unit:       payload.Unit,
	}
}
