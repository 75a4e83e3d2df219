package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Line is one product in the cart. Name, price and image are captured when the
// product is first added and are not refreshed afterwards.
type Line struct {
	ProductID      string          `json:"product_id"`
	InventoryID    int64           `json:"inventory_id,omitempty"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	ImageRef       string          `json:"image_ref,omitempty"`
	AvailableStock int             `json:"available_stock"`
	Quantity       int             `json:"quantity"`
}

// Total is quantity times the snapshot price.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) valid() bool {
	return strings.TrimSpace(l.ProductID) != "" &&
		l.Quantity >= 1 &&
		l.Quantity <= l.AvailableStock &&
		!l.UnitPrice.IsNegative()
}

// Product is the catalog snapshot handed to Add.
type Product struct {
	ProductID   string
	InventoryID int64
	Name        string
	UnitPrice   decimal.Decimal
	ImageRef    string
	Stock       int
}

func (p Product) line(qty int) Line {
	return Line{
		ProductID:      p.ProductID,
		InventoryID:    p.InventoryID,
		Name:           p.Name,
		UnitPrice:      p.UnitPrice,
		ImageRef:       p.ImageRef,
		AvailableStock: p.Stock,
		Quantity:       qty,
	}
}
