package orders

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/responses"
	"github.com/angelmondragon/grocer-backend/api/validators"
	internalorders "github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

const (
	maxOrderNumberLen = 32
	maxEmailLen       = 254
)

// viewerOp is the body of an authenticated order endpoint.
type viewerOp func(r *http.Request, viewer internalorders.Viewer) (any, error)

// authed resolves the viewer, runs op and writes its result with status.
// When the backing service is missing it answers 500 with unavailable.
func authed(ready bool, unavailable string, logg *logger.Logger, status int, op viewerOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !ready {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, unavailable))
			return
		}
		viewer, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := op(r, viewer)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

func ordersOp(svc internalorders.Service, logg *logger.Logger, op viewerOp) http.HandlerFunc {
	return authed(svc != nil, "orders service unavailable", logg, http.StatusOK, op)
}

// List returns the caller's order history, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return ordersOp(svc, logg, func(r *http.Request, viewer internalorders.Viewer) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		page, err := svc.List(r.Context(), viewer.UserID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			return nil, err
		}
		return newOrderListResponse(page), nil
	})
}

// Detail returns one order. Customers only see their own.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return ordersOp(svc, logg, func(r *http.Request, viewer internalorders.Viewer) (any, error) {
		orderID, err := parseOrderID(r)
		if err != nil {
			return nil, err
		}
		order, err := svc.Get(r.Context(), orderID, viewer)
		if err != nil {
			return nil, err
		}
		return newOrderResponse(order), nil
	})
}

// Cancel cancels an order that has not been packed yet. The body is optional.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return ordersOp(svc, logg, func(r *http.Request, viewer internalorders.Viewer) (any, error) {
		orderID, err := parseOrderID(r)
		if err != nil {
			return nil, err
		}
		var body cancelRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			return nil, err
		}
		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID:    orderID,
			CustomerID: viewer.UserID,
			Reason:     body.Reason,
			Actor:      actorFromViewer(viewer),
			AsAdmin:    viewer.Role == enums.UserRoleAdmin,
		})
		if err != nil {
			return nil, err
		}
		return newOrderResponse(order), nil
	})
}

// UpdateStatus moves an order along its lifecycle. The router restricts it
// to admins.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return ordersOp(svc, logg, func(r *http.Request, viewer internalorders.Viewer) (any, error) {
		orderID, err := parseOrderID(r)
		if err != nil {
			return nil, err
		}
		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(body.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}
		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID: orderID,
			Status:  status,
			Message: body.Message,
			Actor:   actorFromViewer(viewer),
		})
		if err != nil {
			return nil, err
		}
		return newOrderResponse(order), nil
	})
}

// Track serves the public tracking view. It needs no token; the order
// number and email together act as the credential.
func Track(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		q := r.URL.Query()
		orderNumber := validators.SanitizeString(q.Get("orderNumber"), maxOrderNumberLen)
		email := validators.SanitizeString(q.Get("email"), maxEmailLen)
		if orderNumber == "" || email == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderNumber and email are required"))
			return
		}
		view, err := svc.Track(ctx, orderNumber, email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// viewerFromRequest treats a principal without a recognised role as a
// customer.
func viewerFromRequest(r *http.Request) (internalorders.Viewer, error) {
	userID, err := middleware.CustomerIDFromContext(r.Context())
	if err != nil {
		return internalorders.Viewer{}, err
	}
	role := middleware.RoleFromContext(r.Context())
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	return internalorders.Viewer{UserID: userID, Role: role}, nil
}

func actorFromViewer(viewer internalorders.Viewer) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: viewer.UserID, Role: string(viewer.Role)}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// decodeOptionalBody leaves dest untouched when the request has no body.
func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	if err := validators.DecodeJSONBody(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
