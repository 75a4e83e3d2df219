package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
)

// OrderLine is a cart line resolved to an inventory row. UnitPrice is the
// price the buyer saw when adding the product, not the live catalog price.
type OrderLine struct {
	InventoryID int64           `json:"inventory_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Submission is the purchase sent to the sales ledger. It is built once per
// attempt and never stored by the checkout itself.
type Submission struct {
	Type          enums.SaleType      `json:"type"`
	Date          string              `json:"date"`
	DestinationID string              `json:"destination_id"`
	UserID        string              `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Lines         []OrderLine         `json:"lines"`
}

func (s Submission) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// Receipt is returned after a successful submission for display.
type Receipt struct {
	InvoiceID     int64               `json:"invoice_id"`
	Date          string              `json:"date"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Lines         []OrderLine         `json:"lines"`
	Unresolved    []cart.Line         `json:"unresolved"`
	TotalItems    int                 `json:"total_items"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	SubmittedAt   time.Time           `json:"submitted_at"`
}
