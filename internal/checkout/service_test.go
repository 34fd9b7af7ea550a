package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/internal/offers"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	product "github.com/angelmondragon/grocer-backend/internal/products"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
	"github.com/angelmondragon/grocer-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// world is the shared in-memory state behind every fake. The tx runner
// snapshots it and restores the snapshot when the callback fails.
type world struct {
	carts    map[uuid.UUID]models.Cart
	products map[uuid.UUID]models.Product
	offers   map[string]models.Offer
	orders   map[uuid.UUID]models.Order
	events   []outbox.DomainEvent

	// staleCart, when set, is what cart reads return regardless of the
	// stored carts, as if read before a concurrent checkout committed.
	staleCart *models.Cart

	failDecrement bool
	failEmit      bool
}

func newWorld() *world {
	return &world{
		carts:    map[uuid.UUID]models.Cart{},
		products: map[uuid.UUID]models.Product{},
		offers:   map[string]models.Offer{},
		orders:   map[uuid.UUID]models.Order{},
	}
}

func (w *world) snapshot() world {
	dup := *w
	dup.carts = map[uuid.UUID]models.Cart{}
	for k, v := range w.carts {
		v.Items = append([]models.CartItem(nil), v.Items...)
		dup.carts[k] = v
	}
	dup.products = map[uuid.UUID]models.Product{}
	for k, v := range w.products {
		dup.products[k] = v
	}
	dup.offers = map[string]models.Offer{}
	for k, v := range w.offers {
		dup.offers[k] = v
	}
	dup.orders = map[uuid.UUID]models.Order{}
	for k, v := range w.orders {
		dup.orders[k] = v
	}
	dup.events = append([]outbox.DomainEvent(nil), w.events...)
	return dup
}

type worldTx struct{ w *world }

func (t worldTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	saved := t.w.snapshot()
	if err := fn(nil); err != nil {
		*t.w = saved
		return err
	}
	return nil
}

type worldCarts struct{ w *world }

func (r worldCarts) WithTx(tx *gorm.DB) cart.CartRepository { return r }

func (r worldCarts) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	c, ok := r.w.carts[customerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r worldCarts) FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if r.w.staleCart != nil {
		c := *r.w.staleCart
		c.Items = append([]models.CartItem(nil), r.w.staleCart.Items...)
		return &c, nil
	}
	return r.FindByCustomer(ctx, customerID)
}

func (r worldCarts) Create(ctx context.Context, c *models.Cart) (*models.Cart, error) {
	r.w.carts[c.CustomerID] = *c
	return c, nil
}

func (r worldCarts) UpdateTotal(ctx context.Context, cartID uuid.UUID, totalCents int64) error {
	return nil
}

func (r worldCarts) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	return nil
}

func (r worldCarts) DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (bool, error) {
	_, ok := r.w.carts[customerID]
	delete(r.w.carts, customerID)
	return ok, nil
}

type worldLedger struct{ w *world }

func (l worldLedger) WithTx(tx *gorm.DB) product.Ledger { return l }

func (l worldLedger) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := l.w.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &p, nil
}

func (l worldLedger) FindManyByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := map[uuid.UUID]models.Product{}
	for _, id := range ids {
		if p, ok := l.w.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (l worldLedger) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	p := l.w.products[id]
	if l.w.failDecrement || p.Stock < qty {
		return product.InsufficientStockError(id, qty)
	}
	p.Stock -= qty
	l.w.products[id] = p
	return nil
}

func (l worldLedger) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	p := l.w.products[id]
	p.Stock += qty
	l.w.products[id] = p
	return nil
}

type worldOffers struct{ w *world }

func (s worldOffers) WithTx(tx *gorm.DB) offers.Store { return s }

func (s worldOffers) FindByCode(ctx context.Context, code string) (*models.Offer, error) {
	o, ok := s.w.offers[code]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s worldOffers) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Offer, error) {
	return s.FindByCode(ctx, code)
}

func (s worldOffers) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	for code, o := range s.w.offers {
		if o.ID != id {
			continue
		}
		if o.UsageLimit != nil && o.UsedCount >= *o.UsageLimit {
			return false, nil
		}
		o.UsedCount++
		s.w.offers[code] = o
		return true, nil
	}
	return false, nil
}

type worldOrders struct {
	w        *world
	taken    map[string]bool
	checked  []string
	failNext error
}

func (r *worldOrders) WithTx(tx *gorm.DB) orders.Repository { return r }

func (r *worldOrders) Create(ctx context.Context, order *models.Order) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.w.orders[order.ID] = *order
	return nil
}

func (r *worldOrders) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	r.checked = append(r.checked, orderNumber)
	return r.taken[orderNumber], nil
}

func (r *worldOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.w.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &o, nil
}

func (r *worldOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *worldOrders) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (r *worldOrders) ListByCustomer(ctx context.Context, params orders.ListParams) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (r *worldOrders) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	return false, nil
}

func (r *worldOrders) AppendTracking(ctx context.Context, update *models.OrderTrackingUpdate) error {
	return nil
}

func (r *worldOrders) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type worldOutbox struct{ w *world }

func (o worldOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if o.w.failEmit {
		return errors.New("outbox unavailable")
	}
	o.w.events = append(o.w.events, event)
	return nil
}

type stubAssigner struct {
	partner string
	err     error
}

func (a stubAssigner) Assign(ctx context.Context) (string, error) { return a.partner, a.err }

type stubConfirmer struct {
	w     *world
	err   error
	calls int
}

func (c *stubConfirmer) Confirm(ctx context.Context, orderID uuid.UUID, partnerID string) (*models.Order, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	order := c.w.orders[orderID]
	order.Status = enums.OrderStatusConfirmed
	order.DeliveryPartnerID = &partnerID
	c.w.orders[orderID] = order
	return &order, nil
}

type recordingNotifier struct{ sent []models.Order }

func (n *recordingNotifier) SendOrderConfirmation(ctx context.Context, order models.Order) bool {
	n.sent = append(n.sent, order)
	return true
}

type recordingOutcomes struct{ results []string }

func (r *recordingOutcomes) IncOutcome(result string) { r.results = append(r.results, result) }

type harness struct {
	w         *world
	svc       *service
	orders    *worldOrders
	confirmer *stubConfirmer
	notifier  *recordingNotifier
	outcomes  *recordingOutcomes
	customer  uuid.UUID
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		TaxRatePercent:        "5",
		FreeDeliveryThreshold: 50000,
		DeliveryFee:           5000,
		EstimatedDeliveryIn:   2 * time.Hour,
		OrderNumberAttempts:   3,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	w := newWorld()
	h := &harness{
		w:         w,
		orders:    &worldOrders{w: w, taken: map[string]bool{}},
		confirmer: &stubConfirmer{w: w},
		notifier:  &recordingNotifier{},
		outcomes:  &recordingOutcomes{},
		customer:  uuid.New(),
	}
	svc, err := NewService(Deps{
		Tx:        worldTx{w: w},
		Carts:     worldCarts{w: w},
		Products:  worldLedger{w: w},
		Offers:    offers.NewEngine(worldOffers{w: w}, nil, nil),
		Orders:    h.orders,
		Confirmer: h.confirmer,
		Assigner:  stubAssigner{partner: "partner-1"},
		Outbox:    worldOutbox{w: w},
		Notifier:  h.notifier,
		Metrics:   h.outcomes,
	}, testCheckoutConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc.(*service)
	h.svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	suffix := 0
	h.svc.nextSuffix = func() int {
		suffix++
		return suffix
	}
	return h
}

func (h *harness) addProduct(price int64, stock int) uuid.UUID {
	id := uuid.New()
	h.w.products[id] = models.Product{ID: id, Name: "Apples", Unit: "kg", PriceCents: price, Stock: stock, IsActive: true}
	return id
}

func (h *harness) putCart(lines ...models.CartItem) {
	var total int64
	for i := range lines {
		lines[i].Position = i
		lines[i].SubtotalCents = lines[i].PriceCents * int64(lines[i].Quantity)
		total += lines[i].SubtotalCents
	}
	h.w.carts[h.customer] = models.Cart{ID: uuid.New(), CustomerID: h.customer, TotalCents: total, Items: lines}
}

func (h *harness) addOffer(code string, minimum, maximum int64) {
	h.w.offers[code] = models.Offer{
		ID:                   uuid.New(),
		Code:                 code,
		DiscountType:         enums.DiscountTypePercentage,
		Value:                decimal.NewFromInt(10),
		MinimumOrderCents:    minimum,
		MaximumDiscountCents: &maximum,
		ValidFrom:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:           time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		IsActive:             true,
	}
}

func (h *harness) input() Input {
	return Input{
		CustomerID:    h.customer,
		CustomerEmail: "shopper@example.com",
		DeliveryAddress: types.DeliveryAddress{
			Name:       "Asha",
			Phone:      "9999999999",
			Line1:      "12 Market Road",
			City:       "Pune",
			State:      "MH",
			PostalCode: "411001",
		},
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
		DeliverySlot:  "09:00-11:00",
	}
}

func line(productID uuid.UUID, price int64, qty int) models.CartItem {
	return models.CartItem{ProductID: productID, Name: "Apples", Unit: "kg", PriceCents: price, Quantity: qty}
}

func strPtr(v string) *string { return &v }

func TestCheckoutWithoutOfferAboveFreeDeliveryThreshold(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(30000, 5)
	h.putCart(line(apples, 30000, 2))

	result, err := h.svc.Checkout(context.Background(), h.input())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	totals := result.Totals
	if totals.SubtotalCents != 60000 || totals.DeliveryFeeCents != 0 || totals.TaxCents != 3000 || totals.TotalCents != 63000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if result.OfferApplied {
		t.Fatalf("no offer was supplied")
	}
	if result.Order.OrderNumber != "ORD20260314-0001" {
		t.Fatalf("unexpected order number %q", result.Order.OrderNumber)
	}
	if result.Order.Status != enums.OrderStatusConfirmed || result.Order.DeliveryPartnerID == nil {
		t.Fatalf("expected confirmed order with a partner, got %+v", result.Order)
	}
	if got := h.w.products[apples].Stock; got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
	if _, ok := h.w.carts[h.customer]; ok {
		t.Fatalf("expected cart cleared")
	}
	if len(h.w.events) != 1 || h.w.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order_created event, got %+v", h.w.events)
	}
	if len(h.notifier.sent) != 1 {
		t.Fatalf("expected confirmation notification")
	}
	if len(h.outcomes.results) != 1 || h.outcomes.results[0] != "success" {
		t.Fatalf("unexpected outcomes %v", h.outcomes.results)
	}
	stored := h.w.orders[result.Order.ID]
	if len(stored.Items) != 1 || stored.Items[0].SubtotalCents != 60000 {
		t.Fatalf("unexpected stored items %+v", stored.Items)
	}
	if len(stored.TrackingUpdates) != 1 || stored.TrackingUpdates[0].Status != enums.OrderStatusPending {
		t.Fatalf("expected initial pending tracking entry, got %+v", stored.TrackingUpdates)
	}
	if stored.EstimatedDelivery == nil || !stored.EstimatedDelivery.Equal(h.svc.now().Add(2*time.Hour)) {
		t.Fatalf("unexpected estimated delivery %v", stored.EstimatedDelivery)
	}
}

func TestCheckoutSameCartTwiceOnlyPlacesOneOrder(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(30000, 10)
	h.addOffer("FRESH10", 0, 10000)
	h.putCart(line(apples, 30000, 2))
	snapshot := h.w.carts[h.customer]
	h.w.staleCart = &snapshot

	in := h.input()
	in.OfferCode = strPtr("FRESH10")
	if _, err := h.svc.Checkout(context.Background(), in); err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	_, err := h.svc.Checkout(context.Background(), in)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.Reason(err) != ReasonCartCheckedOut {
		t.Fatalf("expected cart already checked out conflict, got %v", err)
	}
	if len(h.w.orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(h.w.orders))
	}
	if got := h.w.products[apples].Stock; got != 8 {
		t.Fatalf("expected stock 8, got %d", got)
	}
	if used := h.w.offers["FRESH10"].UsedCount; used != 1 {
		t.Fatalf("expected offer used once, got %d", used)
	}
	if len(h.w.events) != 1 {
		t.Fatalf("expected one order_created event, got %d", len(h.w.events))
	}
}

func TestCheckoutOfferBelowMinimumIsNotApplied(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(20000, 5)
	h.putCart(line(apples, 20000, 1))
	h.addOffer("FRESH10", 50000, 10000)

	in := h.input()
	in.OfferCode = strPtr("FRESH10")
	result, err := h.svc.Checkout(context.Background(), in)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.OfferApplied || result.Totals.DiscountCents != 0 {
		t.Fatalf("offer should not apply: %+v", result.Totals)
	}
	if result.Totals.DeliveryFeeCents != 5000 || result.Totals.TaxCents != 1000 || result.Totals.TotalCents != 26000 {
		t.Fatalf("unexpected totals %+v", result.Totals)
	}
	if result.Order.OfferID != nil {
		t.Fatalf("rejected offer must not be recorded on the order")
	}
	if h.w.offers["FRESH10"].UsedCount != 0 {
		t.Fatalf("rejected offer must not be redeemed")
	}
}

func TestCheckoutPercentageOfferIsCapped(t *testing.T) {
	for _, subtotal := range []int64{100000, 200000} {
		h := newHarness(t)
		apples := h.addProduct(subtotal, 1)
		h.putCart(line(apples, subtotal, 1))
		h.addOffer("FRESH10", 0, 10000)

		in := h.input()
		in.OfferCode = strPtr("FRESH10")
		result, err := h.svc.Checkout(context.Background(), in)
		if err != nil {
			t.Fatalf("checkout %d: %v", subtotal, err)
		}
		if !result.OfferApplied || result.Totals.DiscountCents != 10000 {
			t.Fatalf("subtotal %d: expected capped discount 10000, got %+v", subtotal, result.Totals)
		}
		want := subtotal + subtotal*5/100 - 10000
		if result.Totals.TotalCents != want {
			t.Fatalf("subtotal %d: expected total %d, got %d", subtotal, want, result.Totals.TotalCents)
		}
		if h.w.offers["FRESH10"].UsedCount != 1 {
			t.Fatalf("expected one redemption")
		}
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Checkout(context.Background(), h.input())
	if pkgerrors.Reason(err) != ReasonEmptyCart || !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected empty cart validation error, got %v", err)
	}
	if len(h.outcomes.results) != 1 || h.outcomes.results[0] != ReasonEmptyCart {
		t.Fatalf("unexpected outcomes %v", h.outcomes.results)
	}
}

func TestCheckoutRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	h.putCart(line(apples, 1000, 1))

	cases := map[string]func(*Input){
		"email":   func(in *Input) { in.CustomerEmail = " " },
		"address": func(in *Input) { in.DeliveryAddress.City = "" },
		"payment": func(in *Input) { in.PaymentMethod = "cheque" },
		"slot":    func(in *Input) { in.DeliverySlot = "" },
	}
	for name, mutate := range cases {
		in := h.input()
		mutate(&in)
		if _, err := h.svc.Checkout(context.Background(), in); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if len(h.w.orders) != 0 {
		t.Fatalf("no order should be created")
	}
}

func TestCheckoutUnavailableProductPersistsNothing(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	p := h.w.products[apples]
	p.IsActive = false
	h.w.products[apples] = p
	h.putCart(line(apples, 1000, 1))

	_, err := h.svc.Checkout(context.Background(), h.input())
	if pkgerrors.Reason(err) != product.ReasonProductUnavailable {
		t.Fatalf("expected product unavailable, got %v", err)
	}
	if len(h.w.orders) != 0 || len(h.w.events) != 0 {
		t.Fatalf("nothing should be persisted")
	}
	if _, ok := h.w.carts[h.customer]; !ok {
		t.Fatalf("cart must be kept")
	}
}

func TestCheckoutInsufficientStockPersistsNothing(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	pears := h.addProduct(2000, 1)
	h.putCart(line(apples, 1000, 2), line(pears, 2000, 3))
	h.addOffer("FRESH10", 0, 10000)

	in := h.input()
	in.OfferCode = strPtr("FRESH10")
	_, err := h.svc.Checkout(context.Background(), in)
	if pkgerrors.Reason(err) != product.ReasonInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if h.w.products[apples].Stock != 5 || h.w.products[pears].Stock != 1 {
		t.Fatalf("stock must be unchanged")
	}
	if h.w.offers["FRESH10"].UsedCount != 0 {
		t.Fatalf("offer must not be redeemed")
	}
	if len(h.w.orders) != 0 || len(h.notifier.sent) != 0 || h.confirmer.calls != 0 {
		t.Fatalf("no order side effects expected")
	}
}

func TestCheckoutRollsBackWhenDecrementLosesRace(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	h.putCart(line(apples, 1000, 2))
	h.addOffer("FRESH10", 0, 10000)
	h.w.failDecrement = true

	in := h.input()
	in.OfferCode = strPtr("FRESH10")
	if _, err := h.svc.Checkout(context.Background(), in); pkgerrors.Reason(err) != product.ReasonInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if len(h.w.orders) != 0 || h.w.offers["FRESH10"].UsedCount != 0 {
		t.Fatalf("order and redemption must roll back")
	}
	if _, ok := h.w.carts[h.customer]; !ok {
		t.Fatalf("cart must be kept")
	}
}

func TestCheckoutOutboxFailureIsDependencyError(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	h.putCart(line(apples, 1000, 2))
	h.w.failEmit = true

	_, err := h.svc.Checkout(context.Background(), h.input())
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(h.w.orders) != 0 || h.w.products[apples].Stock != 5 {
		t.Fatalf("transaction must roll back")
	}
}

func TestCheckoutReportsPriceDrift(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1200, 5)
	h.putCart(line(apples, 1000, 2))

	result, err := h.svc.Checkout(context.Background(), h.input())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(result.PriceChanges) != 1 {
		t.Fatalf("expected one price change, got %+v", result.PriceChanges)
	}
	change := result.PriceChanges[0]
	if change.CartPriceCents != 1000 || change.CurrentPriceCents != 1200 {
		t.Fatalf("unexpected change %+v", change)
	}
	if result.Totals.SubtotalCents != 2400 {
		t.Fatalf("order must use live prices, got subtotal %d", result.Totals.SubtotalCents)
	}
}

func TestCheckoutExpectedSubtotalMismatch(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1200, 5)
	h.putCart(line(apples, 1000, 2))

	in := h.input()
	expected := int64(2000)
	in.ExpectedSubtotalCents = &expected
	_, err := h.svc.Checkout(context.Background(), in)
	if pkgerrors.Reason(err) != ReasonPriceChanged || !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected price changed conflict, got %v", err)
	}
	if len(h.w.orders) != 0 || h.w.products[apples].Stock != 5 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestCheckoutRetriesTakenOrderNumbers(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	h.putCart(line(apples, 1000, 1))
	h.orders.taken["ORD20260314-0001"] = true
	h.orders.taken["ORD20260314-0002"] = true

	result, err := h.svc.Checkout(context.Background(), h.input())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.Order.OrderNumber != "ORD20260314-0003" {
		t.Fatalf("unexpected order number %q", result.Order.OrderNumber)
	}
	if len(h.orders.checked) != 3 {
		t.Fatalf("expected three probes, got %v", h.orders.checked)
	}
}

func TestCheckoutOrderNumberExhaustion(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	h.putCart(line(apples, 1000, 1))
	h.svc.nextSuffix = func() int { return 7 }
	h.orders.taken["ORD20260314-0007"] = true

	_, err := h.svc.Checkout(context.Background(), h.input())
	if pkgerrors.Reason(err) != ReasonOrderNumberTaken {
		t.Fatalf("expected order number conflict, got %v", err)
	}
	if h.w.products[apples].Stock != 5 {
		t.Fatalf("stock must be unchanged")
	}
}

func TestCheckoutConfirmFailureKeepsOrderPending(t *testing.T) {
	h := newHarness(t)
	apples := h.addProduct(1000, 5)
	h.putCart(line(apples, 1000, 1))
	h.confirmer.err = errors.New("confirm failed")

	result, err := h.svc.Checkout(context.Background(), h.input())
	if err != nil {
		t.Fatalf("confirm failure must not fail checkout: %v", err)
	}
	if result.Order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", result.Order.Status)
	}
	if h.w.products[apples].Stock != 4 {
		t.Fatalf("stock must stay decremented")
	}
	if len(h.notifier.sent) != 1 {
		t.Fatalf("confirmation notification still expected")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(Deps{}, testCheckoutConfig()); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
