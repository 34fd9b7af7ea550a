// Package inbox serves the customer notification endpoints.
package inbox

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/api/responses"
	"github.com/angelmondragon/grocer-backend/api/validators"
	"github.com/angelmondragon/grocer-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

// customerFunc handles a request for an authenticated customer and returns
// the response payload.
type customerFunc func(r *http.Request, customerID uuid.UUID) (any, error)

func serve(svc notifications.Service, logg *logger.Logger, fn customerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		customerID, err := middleware.CustomerIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := fn(r, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// List handles GET /notifications?limit=&cursor=&unreadOnly=.
func List(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		unreadOnly := false
		if raw := strings.TrimSpace(r.URL.Query().Get("unreadOnly")); raw != "" {
			if unreadOnly, err = strconv.ParseBool(raw); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadOnly must be true or false")
			}
		}
		return svc.List(r.Context(), notifications.ListParams{
			CustomerID: customerID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unreadOnly,
		})
	})
}

// MarkRead handles POST /notifications/{notificationId}/read.
func MarkRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "notificationId")))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id")
		}
		if err := svc.MarkRead(r.Context(), customerID, id); err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "read": true}, nil
	})
}

// MarkAllRead handles POST /notifications/read-all.
func MarkAllRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, logg, func(r *http.Request, customerID uuid.UUID) (any, error) {
		n, err := svc.MarkAllRead(r.Context(), customerID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
