package cart

import (
	"context"
	"fmt"
	"strings"

	product "github.com/angelmondragon/grocer-backend/internal/products"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the customer cart operations.
type Service interface {
	GetCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, customerID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

// AddItemInput describes a product being put in the cart. Name, price and
// unit are the values shown to the customer; omitted values are taken from
// the live product.
type AddItemInput struct {
	ProductID  uuid.UUID
	Quantity   int
	Name       *string
	PriceCents *int64
	Unit       *string
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productReader
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		logg:     logg,
	}, nil
}

// GetCart returns the cart after dropping lines that can no longer be bought.
// A customer without a cart gets an empty one.
func (s *service) GetCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	cart, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil {
		return emptyCart(customerID), nil
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	live, err := s.products.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	kept, pruned := pruneUnsellable(cart.Items, live)
	total := Total(kept)
	if !pruned && total == cart.TotalCents {
		return cart, nil
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if pruned {
			if err := txRepo.ReplaceItems(ctx, cart.ID, kept); err != nil {
				return err
			}
		}
		return txRepo.UpdateTotal(ctx, cart.ID, total)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pruned cart")
	}

	if pruned && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"customer_id": customerID.String(),
			"removed":     len(cart.Items) - len(kept),
		})
		s.logg.Info(logCtx, "cart.pruned_unavailable_items")
	}

	cart.Items = kept
	cart.TotalCents = total
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, customerID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.PriceCents != nil && *input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	live, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !live.IsActive {
		return nil, product.UnavailableError(live.ID)
	}

	return s.mutate(ctx, customerID, func(items []models.CartItem) ([]models.CartItem, error) {
		if idx := indexOf(items, live.ID); idx >= 0 {
			merged := items[idx].Quantity + input.Quantity
			if live.Stock < merged {
				return nil, product.InsufficientStockError(live.ID, merged)
			}
			items[idx].Quantity = merged
			items[idx].SubtotalCents = lineSubtotal(items[idx].PriceCents, merged)
			return items, nil
		}

		if live.Stock < input.Quantity {
			return nil, product.InsufficientStockError(live.ID, input.Quantity)
		}
		item := newItem(live, input)
		return append(items, item), nil
	})
}

func (s *service) UpdateItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, customerID, productID)
	}

	return s.mutate(ctx, customerID, func(items []models.CartItem) ([]models.CartItem, error) {
		idx := indexOf(items, productID)
		if idx < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		live, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, product.UnavailableError(productID)
			}
			return nil, err
		}
		if !live.IsActive {
			return nil, product.UnavailableError(productID)
		}
		if live.Stock < quantity {
			return nil, product.InsufficientStockError(productID, quantity)
		}
		items[idx].Quantity = quantity
		items[idx].SubtotalCents = lineSubtotal(items[idx].PriceCents, quantity)
		return items, nil
	})
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.mutate(ctx, customerID, func(items []models.CartItem) ([]models.CartItem, error) {
		idx := indexOf(items, productID)
		if idx < 0 {
			return items, nil
		}
		return append(items[:idx], items[idx+1:]...), nil
	})
}

// Clear deletes the cart record entirely.
func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if _, err := s.repo.DeleteByCustomer(ctx, customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// mutate loads the cart inside a transaction, applies fn to a copy of its
// items and persists the result with a recomputed total. A cart left with no
// items is deleted, like Clear.
func (s *service) mutate(ctx context.Context, customerID uuid.UUID, fn func(items []models.CartItem) ([]models.CartItem, error)) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := txRepo.FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}

		var current []models.CartItem
		if cart != nil {
			current = append(current, cart.Items...)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}

		if len(next) == 0 {
			if cart != nil {
				if _, err := txRepo.DeleteByCustomer(ctx, customerID); err != nil {
					return err
				}
			}
			result = emptyCart(customerID)
			return nil
		}
		if cart == nil {
			cart, err = txRepo.Create(ctx, &models.Cart{CustomerID: customerID})
			if err != nil {
				return err
			}
		}

		if err := txRepo.ReplaceItems(ctx, cart.ID, next); err != nil {
			return err
		}
		total := Total(next)
		if err := txRepo.UpdateTotal(ctx, cart.ID, total); err != nil {
			return err
		}
		cart.Items = next
		cart.TotalCents = total
		result = cart
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return result, nil
}

func newItem(live *models.Product, input AddItemInput) models.CartItem {
	name := live.Name
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		name = strings.TrimSpace(*input.Name)
	}
	unit := live.Unit
	if input.Unit != nil && strings.TrimSpace(*input.Unit) != "" {
		unit = strings.TrimSpace(*input.Unit)
	}
	price := live.PriceCents
	if input.PriceCents != nil {
		price = *input.PriceCents
	}
	return models.CartItem{
		ProductID:     live.ID,
		Name:          name,
		Unit:          unit,
		PriceCents:    price,
		Quantity:      input.Quantity,
		SubtotalCents: lineSubtotal(price, input.Quantity),
	}
}

func emptyCart(customerID uuid.UUID) *models.Cart {
	return &models.Cart{CustomerID: customerID, Items: []models.CartItem{}}
}
