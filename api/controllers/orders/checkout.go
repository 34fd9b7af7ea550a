package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/grocer-backend/internal/checkout"
	internalorders "github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

// Checkout turns the customer's cart into a pending order. A token without
// an email falls back to the email in the body.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, "checkout service unavailable", logg, http.StatusCreated, func(r *http.Request, viewer internalorders.Viewer) (any, error) {
		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		email := middleware.EmailFromContext(r.Context())
		if email == "" && body.Email != nil {
			email = strings.TrimSpace(*body.Email)
		}
		result, err := svc.Checkout(r.Context(), checkoutsvc.Input{
			CustomerID:            viewer.UserID,
			CustomerEmail:         email,
			DeliveryAddress:       body.DeliveryAddress,
			PaymentMethod:         enums.PaymentMethod(body.PaymentMethod),
			DeliverySlot:          validators.SanitizeString(body.DeliverySlot, 64),
			Notes:                 body.Notes,
			OfferCode:             body.OfferCode,
			ExpectedSubtotalCents: body.ExpectedSubtotalCents,
			Actor:                 actorFromViewer(viewer),
		})
		if err != nil {
			return nil, err
		}
		return newCheckoutResponse(result), nil
	})
}
