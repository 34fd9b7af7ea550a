// Package cart serves the customer's server-side cart.
package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/responses"
	"github.com/angelmondragon/grocer-backend/api/validators"
	cartsvc "github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

// mutation runs one cart operation for the authenticated customer. Every
// cart endpoint answers with the resulting cart.
type mutation func(r *http.Request, customerID uuid.UUID) (*models.Cart, error)

func handle(svc cartsvc.Service, logg *logger.Logger, op mutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := middleware.CustomerIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		cart, err := op(r, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// Fetch returns the cart, empty when the customer has none.
func Fetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(r *http.Request, customerID uuid.UUID) (*models.Cart, error) {
		return svc.GetCart(r.Context(), customerID)
	})
}

// AddItem adds a product or merges the quantity into its existing line.
func AddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(r *http.Request, customerID uuid.UUID) (*models.Cart, error) {
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), customerID, toAddItemInput(body))
	})
}

// UpdateItem sets a line's quantity. Zero removes the line.
func UpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(r *http.Request, customerID uuid.UUID) (*models.Cart, error) {
		productID, err := productIDParam(r)
		if err != nil {
			return nil, err
		}
		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.UpdateItem(r.Context(), customerID, productID, *body.Quantity)
	})
}

// RemoveItem drops a line; removing an absent product is a no-op.
func RemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(r *http.Request, customerID uuid.UUID) (*models.Cart, error) {
		productID, err := productIDParam(r)
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), customerID, productID)
	})
}

func Clear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(r *http.Request, customerID uuid.UUID) (*models.Cart, error) {
		return nil, svc.Clear(r.Context(), customerID)
	})
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
