package inventory

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-cart/internal/repo"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

const recordColumns = `i.id AS inventory_id,
       i.product_id,
       p.name AS product_name,
       p.unit_price,
       p.image_url,
       i.quantity AS quantity_on_hand`

// Repository reads the sellable catalog.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) sellable(ctx context.Context) *gorm.DB {
	return r.DB(ctx).
		Table("inventory_items AS i").
		Select(recordColumns).
		Joins("JOIN products p ON p.id = i.product_id").
		Where("i.status = ?", models.InventoryStatusActive).
		Where("p.is_active = ?", true)
}

// ListAll returns every sellable inventory row ordered by inventory id.
func (r *Repository) ListAll(ctx context.Context) ([]Record, error) {
	var rows []recordRow
	if err := r.sellable(ctx).Order("i.id ASC").Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// FindByProductID returns the lowest-id sellable inventory row of a product.
func (r *Repository) FindByProductID(ctx context.Context, productID string) (*Record, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(productID), 10, 64)
	if err != nil || id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id").
			WithDetails(map[string]any{"product_id": productID})
	}

	var row recordRow
	err = r.sellable(ctx).
		Where("i.product_id = ?", id).
		Order("i.id ASC").
		Limit(1).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available").
				WithDetails(map[string]any{"product_id": productID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find inventory")
	}
	rec := row.toRecord()
	return &rec, nil
}
