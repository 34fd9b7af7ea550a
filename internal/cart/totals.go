package cart

import (
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/google/uuid"
)

// Total sums item subtotals. The stored cart total is always derived from
// this, never trusted on its own.
func Total(items []models.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.SubtotalCents
	}
	return total
}

func lineSubtotal(priceCents int64, quantity int) int64 {
	return priceCents * int64(quantity)
}

func indexOf(items []models.CartItem, productID uuid.UUID) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// pruneUnsellable drops lines whose product is missing, inactive or no longer
// has enough stock. It reports whether anything was removed.
func pruneUnsellable(items []models.CartItem, live map[uuid.UUID]models.Product) ([]models.CartItem, bool) {
	kept := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		product, ok := live[item.ProductID]
		if !ok || !product.IsActive || product.Stock < item.Quantity {
			continue
		}
		kept = append(kept, item)
	}
	return kept, len(kept) != len(items)
}
