package inventory

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Record is one sellable inventory row joined with its product.
type Record struct {
	InventoryID    int64           `json:"inventory_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	ImageRef       string          `json:"image_ref,omitempty"`
	QuantityOnHand int             `json:"quantity_on_hand"`
}

type recordRow struct {
	InventoryID    int64
	ProductID      int64
	ProductName    string
	UnitPrice      decimal.Decimal
	ImageURL       *string
	QuantityOnHand int
}

func (r recordRow) toRecord() Record {
	rec := Record{
		InventoryID:    r.InventoryID,
		ProductID:      strconv.FormatInt(r.ProductID, 10),
		ProductName:    r.ProductName,
		UnitPrice:      r.UnitPrice,
		QuantityOnHand: r.QuantityOnHand,
	}
	if r.ImageURL != nil {
		rec.ImageRef = *r.ImageURL
	}
	return rec
}
