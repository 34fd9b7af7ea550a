package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

type cartResponse struct {
	CustomerID uuid.UUID      `json:"customerId"`
	Items      []cartItemView `json:"items"`
	ItemCount  int            `json:"itemCount"`
	TotalCents int64          `json:"totalCents"`
	UpdatedAt  *time.Time     `json:"updatedAt,omitempty"`
}

type cartItemView struct {
	ProductID     uuid.UUID `json:"productId"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	PriceCents    int64     `json:"priceCents"`
	Quantity      int       `json:"quantity"`
	SubtotalCents int64     `json:"subtotalCents"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	resp := cartResponse{Items: []cartItemView{}}
	if cart == nil {
		return resp
	}
	resp.CustomerID = cart.CustomerID
	resp.TotalCents = cart.TotalCents
	if !cart.UpdatedAt.IsZero() {
		updated := cart.UpdatedAt
		resp.UpdatedAt = &updated
	}
	for _, item := range cart.Items {
		resp.Items = append(resp.Items, cartItemView{
			ProductID:     item.ProductID,
			Name:          item.Name,
			Unit:          item.Unit,
			PriceCents:    item.PriceCents,
			Quantity:      item.Quantity,
			SubtotalCents: item.SubtotalCents,
		})
		resp.ItemCount += item.Quantity
	}
	return resp
}
