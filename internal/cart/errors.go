package cart

import (
	"errors"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

// ErrQuantityExceedsStock is returned when a mutation would put more units in
// the cart than the product's stock snapshot allows. The cart is unchanged.
var ErrQuantityExceedsStock = errors.New("quantity exceeds available stock")

func quantityExceedsStock(productID string, available, inCart, requested int) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrQuantityExceedsStock, "not enough stock for this product").
		WithDetails(map[string]any{
			"product_id": productID,
			"available":  available,
			"in_cart":    inCart,
			"requested":  requested,
		})
}
