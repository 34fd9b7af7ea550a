package checkout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/internal/offers"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	product "github.com/angelmondragon/grocer-backend/internal/products"
	pkgcheckout "github.com/angelmondragon/grocer-backend/pkg/checkout"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocer-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReasonEmptyCart        = "empty_cart"
	ReasonPriceChanged     = "price_changed"
	ReasonOrderNumberTaken = "order_number_taken"
	ReasonCartCheckedOut   = "cart_checked_out"
)

// Service turns a customer's cart into an order.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// Input carries everything the customer supplies at checkout.
type Input struct {
	CustomerID      uuid.UUID
	CustomerEmail   string
	DeliveryAddress types.DeliveryAddress
	PaymentMethod   enums.PaymentMethod
	DeliverySlot    string
	Notes           *string
	OfferCode       *string
	// ExpectedSubtotalCents, when set, must match the subtotal at live prices.
	ExpectedSubtotalCents *int64
	Actor                 *outbox.ActorRef
}

// PriceChange reports a line whose live price differs from the cart snapshot.
type PriceChange struct {
	ProductID         uuid.UUID `json:"productId"`
	Name              string    `json:"name"`
	CartPriceCents    int64     `json:"cartPriceCents"`
	CurrentPriceCents int64     `json:"currentPriceCents"`
}

// Result is the placed order plus what the customer should be told about it.
type Result struct {
	Order        *models.Order      `json:"order"`
	Totals       pkgcheckout.Totals `json:"totals"`
	OfferApplied bool               `json:"offerApplied"`
	PriceChanges []PriceChange      `json:"priceChanged"`
}

// Deps groups the collaborators of the checkout service. Notifier, Metrics
// and Logger may be nil.
type Deps struct {
	Tx        txRunner
	Carts     cart.CartRepository
	Products  stockLedger
	Offers    *offers.Engine
	Orders    orders.Repository
	Confirmer orderConfirmer
	Assigner  partnerAssigner
	Outbox    outboxPublisher
	Notifier  confirmationNotifier
	Metrics   outcomeRecorder
	Logger    *logger.Logger
}

type service struct {
	deps       Deps
	pricing    pkgcheckout.Pricing
	eta        time.Duration
	attempts   int
	now        func() time.Time
	nextSuffix func() int
}

// NewService builds the checkout orchestrator.
func NewService(deps Deps, cfg config.CheckoutConfig) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Products == nil:
		return nil, fmt.Errorf("product ledger required")
	case deps.Offers == nil:
		return nil, fmt.Errorf("offer engine required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Confirmer == nil:
		return nil, fmt.Errorf("order confirmer required")
	case deps.Assigner == nil:
		return nil, fmt.Errorf("delivery assigner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	pricing, err := pkgcheckout.NewPricing(cfg)
	if err != nil {
		return nil, err
	}
	attempts := cfg.OrderNumberAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &service{
		deps:       deps,
		pricing:    pricing,
		eta:        cfg.EstimatedDeliveryIn,
		attempts:   attempts,
		now:        time.Now,
		nextSuffix: func() int { return rand.IntN(10000) },
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	result, err := s.checkout(ctx, input)
	s.recordOutcome(err)
	return result, err
}

func (s *service) checkout(ctx context.Context, input Input) (*Result, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &Result{}
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.deps.Carts.WithTx(tx)
		ledger := s.deps.Products.WithTx(tx)
		orderRepo := s.deps.Orders.WithTx(tx)

		record, err := carts.FindByCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if record == nil || len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").WithReason(ReasonEmptyCart)
		}

		items, changes, err := snapshotItems(ctx, ledger, record.Items)
		if err != nil {
			return err
		}
		result.PriceChanges = changes

		var subtotal int64
		for _, item := range items {
			subtotal += item.SubtotalCents
		}
		if input.ExpectedSubtotalCents != nil && *input.ExpectedSubtotalCents != subtotal {
			return pkgerrors.New(pkgerrors.CodeConflict, "prices changed since the cart was reviewed").
				WithDetails(map[string]any{
					"expected_subtotal_cents": *input.ExpectedSubtotalCents,
					"current_subtotal_cents":  subtotal,
					"price_changes":           changes,
				}).
				WithReason(ReasonPriceChanged)
		}

		var applied offers.Result
		if input.OfferCode != nil {
			applied, err = s.deps.Offers.WithTx(tx).Apply(ctx, subtotal, *input.OfferCode, now)
			if err != nil {
				return err
			}
		}
		totals := s.pricing.Compute(subtotal, applied.DiscountCents)
		result.Totals = totals
		result.OfferApplied = applied.Applied()

		number, err := s.reserveOrderNumber(ctx, orderRepo, now)
		if err != nil {
			return err
		}

		eta := now.Add(s.eta)
		order := &models.Order{
			ID:                uuid.New(),
			OrderNumber:       number,
			CustomerID:        input.CustomerID,
			CustomerEmail:     input.CustomerEmail,
			SubtotalCents:     totals.SubtotalCents,
			TaxCents:          totals.TaxCents,
			DeliveryFeeCents:  totals.DeliveryFeeCents,
			DiscountCents:     totals.DiscountCents,
			TotalCents:        totals.TotalCents,
			DeliveryAddress:   input.DeliveryAddress,
			PaymentMethod:     input.PaymentMethod,
			DeliverySlot:      input.DeliverySlot,
			Notes:             input.Notes,
			Status:            enums.OrderStatusPending,
			EstimatedDelivery: &eta,
			Items:             items,
			TrackingUpdates: []models.OrderTrackingUpdate{{
				Status:    enums.OrderStatusPending,
				Message:   orders.DefaultMessage(enums.OrderStatusPending),
				CreatedAt: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if applied.Applied() {
			offerID := applied.Offer.ID
			code := applied.Offer.Code
			order.OfferID = &offerID
			order.OfferCode = &code
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			if orders.IsOrderNumberTaken(err) {
				return orderNumberTaken()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for _, item := range order.Items {
			if err := ledger.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		deleted, err := carts.DeleteByCustomer(ctx, input.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if !deleted {
			// Another checkout consumed this cart after we read it.
			return pkgerrors.New(pkgerrors.CodeConflict, "cart was already checked out").
				WithReason(ReasonCartCheckedOut)
		}

		if err := s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    order.CustomerID,
				TotalCents:    order.TotalCents,
				DiscountCents: order.DiscountCents,
				OfferCode:     order.OfferCode,
				Items:         orders.ItemRefs(order.Items),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		result.Order = order
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout transaction")
		}
		return nil, err
	}

	logCtx := ctx
	if s.deps.Logger != nil {
		logCtx = s.deps.Logger.WithOrderID(ctx, result.Order.ID.String())
		if len(result.PriceChanges) > 0 {
			s.deps.Logger.Warn(s.deps.Logger.WithField(logCtx, "price_changes", len(result.PriceChanges)), "checkout.price_drift")
		}
		s.deps.Logger.Info(logCtx, "checkout.order_placed")
	}

	s.confirm(logCtx, result)
	if s.deps.Notifier != nil {
		s.deps.Notifier.SendOrderConfirmation(logCtx, *result.Order)
	}
	return result, nil
}

// confirm assigns a partner and confirms the order. Failures leave the order
// pending for the confirmation job to retry.
func (s *service) confirm(ctx context.Context, result *Result) {
	partner, err := s.deps.Assigner.Assign(ctx)
	if err != nil {
		s.logError(ctx, "checkout.assign_partner_failed", err)
		return
	}
	confirmed, err := s.deps.Confirmer.Confirm(ctx, result.Order.ID, partner)
	if err != nil {
		s.logError(ctx, "checkout.confirm_failed", err)
		return
	}
	result.Order = confirmed
}

func (s *service) reserveOrderNumber(ctx context.Context, repo orders.Repository, now time.Time) (string, error) {
	prefix := "ORD" + now.Format("20060102") + "-"
	for i := 0; i < s.attempts; i++ {
		candidate := fmt.Sprintf("%s%04d", prefix, s.nextSuffix())
		exists, err := repo.OrderNumberExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", orderNumberTaken()
}

func snapshotItems(ctx context.Context, ledger product.Ledger, lines []models.CartItem) ([]models.OrderItem, []PriceChange, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	live, err := ledger.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	var changes []PriceChange
	for _, line := range lines {
		p, ok := live[line.ProductID]
		if !ok || !p.IsActive {
			return nil, nil, product.UnavailableError(line.ProductID)
		}
		if p.Stock < line.Quantity {
			return nil, nil, product.InsufficientStockError(line.ProductID, line.Quantity)
		}
		if p.PriceCents != line.PriceCents {
			changes = append(changes, PriceChange{
				ProductID:         p.ID,
				Name:              p.Name,
				CartPriceCents:    line.PriceCents,
				CurrentPriceCents: p.PriceCents,
			})
		}
		items = append(items, models.OrderItem{
			ProductID:     p.ID,
			Name:          p.Name,
			Unit:          p.Unit,
			PriceCents:    p.PriceCents,
			Quantity:      line.Quantity,
			SubtotalCents: p.PriceCents * int64(line.Quantity),
		})
	}
	return items, changes, nil
}

func validateInput(input *Input) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	if input.CustomerEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	input.DeliveryAddress = input.DeliveryAddress.Normalize()
	if err := input.DeliveryAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	input.DeliverySlot = strings.TrimSpace(input.DeliverySlot)
	if input.DeliverySlot == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery slot required")
	}
	if input.Notes != nil {
		notes := strings.TrimSpace(*input.Notes)
		if notes == "" {
			input.Notes = nil
		} else {
			input.Notes = &notes
		}
	}
	if input.OfferCode != nil && strings.TrimSpace(*input.OfferCode) == "" {
		input.OfferCode = nil
	}
	return nil
}

func orderNumberTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "could not allocate an order number, please retry").
		WithReason(ReasonOrderNumberTaken)
}

func (s *service) recordOutcome(err error) {
	if s.deps.Metrics == nil {
		return
	}
	if err == nil {
		s.deps.Metrics.IncOutcome("success")
		return
	}
	if reason := pkgerrors.Reason(err); reason != "" {
		s.deps.Metrics.IncOutcome(reason)
		return
	}
	if typed := pkgerrors.As(err); typed != nil {
		s.deps.Metrics.IncOutcome(strings.ToLower(string(typed.Code())))
		return
	}
	s.deps.Metrics.IncOutcome("error")
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.deps.Logger != nil {
		s.deps.Logger.Error(ctx, msg, err)
	}
}
