package product

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	ReasonInsufficientStock  = "insufficient_stock"
	ReasonProductUnavailable = "product_unavailable"
)

// InsufficientStockError reports that fewer than requested units are available.
func InsufficientStockError(productID uuid.UUID, requested int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for product %s", productID)).
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
		}).
		WithReason(ReasonInsufficientStock)
}

// UnavailableError reports a product that is missing or no longer sold.
func UnavailableError(productID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("product %s is unavailable", productID)).
		WithDetails(map[string]any{"product_id": productID.String()}).
		WithReason(ReasonProductUnavailable)
}
