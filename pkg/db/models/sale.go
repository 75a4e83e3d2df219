package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
)

// Sale is a submitted purchase. Its ID doubles as the invoice number.
type Sale struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	Type          enums.SaleType      `gorm:"column:type;not null"`
	SaleDate      string              `gorm:"column:sale_date;not null"`
	DestinationID string              `gorm:"column:destination_id;not null"`
	UserID        string              `gorm:"column:user_id;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Lines         []SaleLine          `gorm:"foreignKey:SaleID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// SaleLine records one inventory row sold at the price the buyer saw.
type SaleLine struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID      int64           `gorm:"column:sale_id;not null;uniqueIndex:ux_sale_lines_sale_inventory"`
	InventoryID int64           `gorm:"column:inventory_id;not null;uniqueIndex:ux_sale_lines_sale_inventory"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}
