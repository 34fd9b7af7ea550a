package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/grocer-backend/internal/checkout"
	internalorders "github.com/angelmondragon/grocer-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/grocer-backend/pkg/checkout"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
	"github.com/angelmondragon/grocer-backend/pkg/types"
)

type fakeOrders struct {
	order   *models.Order
	err     error
	page    *internalorders.OrderList
	track   *internalorders.TrackingView
	viewer  internalorders.Viewer
	cancel  internalorders.CancelInput
	update  internalorders.UpdateStatusInput
	params  pagination.Params
	tracked string
}

func (f *fakeOrders) Get(_ context.Context, _ uuid.UUID, viewer internalorders.Viewer) (*models.Order, error) {
	f.viewer = viewer
	return f.order, f.err
}

func (f *fakeOrders) List(_ context.Context, _ uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	f.params = params
	return f.page, f.err
}

func (f *fakeOrders) Track(_ context.Context, _, email string) (*internalorders.TrackingView, error) {
	f.tracked = email
	return f.track, f.err
}

func (f *fakeOrders) UpdateStatus(_ context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
	f.update = input
	return f.order, f.err
}

func (f *fakeOrders) Cancel(_ context.Context, input internalorders.CancelInput) (*models.Order, error) {
	f.cancel = input
	return f.order, f.err
}

func (f *fakeOrders) Confirm(context.Context, uuid.UUID, string) (*models.Order, error) {
	return f.order, f.err
}

type fakeCheckout struct {
	result *checkoutsvc.Result
	err    error
	input  checkoutsvc.Input
	calls  int
}

func (f *fakeCheckout) Checkout(_ context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	f.calls++
	f.input = input
	return f.result, f.err
}

// call runs h as principal p. orderID, when set, becomes the chi route
// param.
func call(h http.HandlerFunc, method, target, body string, p *middleware.Principal, orderID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := req.Context()
	if p != nil {
		ctx = middleware.WithPrincipal(ctx, *p)
	}
	if orderID != "" {
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", orderID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func customer(id uuid.UUID) *middleware.Principal {
	return &middleware.Principal{UserID: id.String(), Role: enums.UserRoleCustomer}
}

func admin(id uuid.UUID) *middleware.Principal {
	return &middleware.Principal{UserID: id.String(), Role: enums.UserRoleAdmin}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func riceOrder(status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD20260314-0042",
		Status:      status,
		TotalCents:  63000,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Name: "Rice", Unit: "kg", PriceCents: 30000, Quantity: 2, SubtotalCents: 60000},
		},
		TrackingUpdates: []models.OrderTrackingUpdate{
			{Status: enums.OrderStatusPending, Message: "Order placed", CreatedAt: time.Now()},
		},
	}
}

const address = `"deliveryAddress":{"name":"Asha","phone":"9999999999","line1":"1 Main St","city":"Pune","state":"MH","postal_code":"411001"}`

func TestCheckoutCreatesOrder(t *testing.T) {
	userID := uuid.New()
	svc := &fakeCheckout{result: &checkoutsvc.Result{
		Order:  riceOrder(enums.OrderStatusPending),
		Totals: pkgcheckout.Totals{SubtotalCents: 60000, TaxCents: 3000, TotalCents: 63000},
	}}
	p := customer(userID)
	p.Email = "asha@example.com"

	body := `{` + address + `,"paymentMethod":"upi","deliverySlot":"morning","offerCode":"FRESH10"}`
	rec := call(Checkout(svc, nil), http.MethodPost, "/api/v1/orders/checkout", body, p, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, userID, svc.input.CustomerID)
	assert.Equal(t, "asha@example.com", svc.input.CustomerEmail)
	assert.Equal(t, enums.PaymentMethodUPI, svc.input.PaymentMethod)
	require.NotNil(t, svc.input.OfferCode)
	assert.Equal(t, "FRESH10", *svc.input.OfferCode)
	require.NotNil(t, svc.input.Actor)
	assert.Equal(t, userID, svc.input.Actor.UserID)

	var env struct {
		Data struct {
			Order struct {
				OrderNumber string `json:"orderNumber"`
			} `json:"order"`
			Totals       pkgcheckout.Totals `json:"totals"`
			PriceChanged []any              `json:"priceChanged"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "ORD20260314-0042", env.Data.Order.OrderNumber)
	assert.Equal(t, int64(63000), env.Data.Totals.TotalCents)
	assert.NotNil(t, env.Data.PriceChanged, "priceChanged is an empty list, not null")
}

func TestCheckoutFallsBackToBodyEmail(t *testing.T) {
	svc := &fakeCheckout{result: &checkoutsvc.Result{Order: riceOrder(enums.OrderStatusPending)}}
	body := `{` + address + `,"paymentMethod":"card","deliverySlot":"evening","email":"asha@example.com"}`
	rec := call(Checkout(svc, nil), http.MethodPost, "/api/v1/orders/checkout", body, customer(uuid.New()), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "asha@example.com", svc.input.CustomerEmail)
}

func TestCheckoutErrors(t *testing.T) {
	stock := pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithReason("insufficient_stock")
	cases := map[string]struct {
		payment   string
		err       error
		want      int
		wantCalls int
	}{
		"unknown payment method": {payment: "cheque", want: http.StatusBadRequest},
		"stock conflict":         {payment: "card", err: stock, want: http.StatusConflict, wantCalls: 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeCheckout{err: tc.err}
			body := `{` + address + `,"paymentMethod":"` + tc.payment + `","deliverySlot":"morning"}`
			rec := call(Checkout(svc, nil), http.MethodPost, "/api/v1/orders/checkout", body, customer(uuid.New()), "")
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, tc.wantCalls, svc.calls)
		})
	}

	rec := call(Checkout(nil, nil), http.MethodPost, "/api/v1/orders/checkout", `{}`, customer(uuid.New()), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, call(Checkout(&fakeCheckout{}, nil), http.MethodPost, "/", `{}`, nil, "").Code)
}

func TestListPassesPagination(t *testing.T) {
	svc := &fakeOrders{page: &internalorders.OrderList{Orders: []models.Order{*riceOrder(enums.OrderStatusConfirmed)}, NextCursor: "next"}}

	rec := call(List(svc, nil), http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", "", customer(uuid.New()), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.Params{Limit: 5, Cursor: "abc"}, svc.params)

	var env struct {
		Data orderListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Len(t, env.Data.Orders, 1)
	assert.Equal(t, "next", env.Data.NextCursor)

	rec = call(List(svc, nil), http.MethodGet, "/api/v1/orders?limit=1000", "", customer(uuid.New()), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetail(t *testing.T) {
	adminID := uuid.New()
	order := riceOrder(enums.OrderStatusPacked)
	svc := &fakeOrders{order: order}

	rec := call(Detail(svc, nil), http.MethodGet, "/api/v1/orders/x", "", admin(adminID), order.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, internalorders.Viewer{UserID: adminID, Role: enums.UserRoleAdmin}, svc.viewer)

	rec = call(Detail(svc, nil), http.MethodGet, "/api/v1/orders/abc", "", customer(uuid.New()), "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unknownRole := &middleware.Principal{UserID: uuid.NewString(), Role: "courier"}
	rec = call(Detail(svc, nil), http.MethodGet, "/api/v1/orders/x", "", unknownRole, order.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.UserRoleCustomer, svc.viewer.Role)
}

func TestCancel(t *testing.T) {
	userID := uuid.New()
	order := riceOrder(enums.OrderStatusCancelled)
	svc := &fakeOrders{order: order}

	rec := call(Cancel(svc, nil), http.MethodPut, "/cancel", "", customer(userID), order.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.ID, svc.cancel.OrderID)
	assert.Equal(t, userID, svc.cancel.CustomerID)
	assert.False(t, svc.cancel.AsAdmin)
	assert.Nil(t, svc.cancel.Reason)

	rec = call(Cancel(svc, nil), http.MethodPut, "/cancel", `{"reason":"wrong address"}`, admin(uuid.New()), order.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.cancel.AsAdmin)
	require.NotNil(t, svc.cancel.Reason)
	assert.Equal(t, "wrong address", *svc.cancel.Reason)
}

func TestCancelRejectedStateIs422(t *testing.T) {
	svc := &fakeOrders{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled")}
	rec := call(Cancel(svc, nil), http.MethodPut, "/cancel", `{"reason":"changed my mind"}`, customer(uuid.New()), uuid.NewString())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
}

func TestUpdateStatus(t *testing.T) {
	order := riceOrder(enums.OrderStatusPreparing)
	svc := &fakeOrders{order: order}

	rec := call(UpdateStatus(svc, nil), http.MethodPatch, "/status", `{"status":"preparing","message":"Picking items"}`, admin(uuid.New()), order.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.OrderStatusPreparing, svc.update.Status)
	require.NotNil(t, svc.update.Actor)
	assert.Equal(t, string(enums.UserRoleAdmin), svc.update.Actor.Role)

	rec = call(UpdateStatus(svc, nil), http.MethodPatch, "/status", `{"status":"teleported"}`, admin(uuid.New()), order.ID.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestTrack(t *testing.T) {
	svc := &fakeOrders{track: &internalorders.TrackingView{
		OrderNumber:     "ORD20260314-0042",
		Status:          enums.OrderStatusOutForDelivery,
		Total:           63000,
		TrackingUpdates: []internalorders.TrackingUpdateView{},
		Items:           []internalorders.TrackingItemView{},
	}}

	rec := call(Track(svc, nil), http.MethodGet, "/api/v1/orders/track?orderNumber=ORD20260314-0042", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "email is required")

	rec = call(Track(svc, nil), http.MethodGet, "/api/v1/orders/track?orderNumber=ORD20260314-0042&email=Asha@Example.com", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asha@Example.com", svc.tracked)

	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	for _, key := range []string{"orderNumber", "status", "trackingUpdates", "total", "items", "deliveryAddress"} {
		assert.Contains(t, env.Data, key)
	}
}
