package models

import "time"

// InventoryItem tracks the on-hand quantity of a product. Sales reference
// inventory rows, not products.
type InventoryItem struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID int64     `gorm:"column:product_id;not null"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Status    string    `gorm:"column:status;not null;default:'active'"`
	Product   Product   `gorm:"foreignKey:ProductID"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// InventoryStatusActive marks rows that can be sold from.
const InventoryStatusActive = "active"
