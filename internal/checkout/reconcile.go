package checkout

import (
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/inventory"
)

// Result splits a cart snapshot into lines that matched an inventory row and
// lines that did not. Both keep cart order.
type Result struct {
	Resolved   []OrderLine
	Unresolved []cart.Line
}

func (r Result) TotalItems() int {
	total := 0
	for _, line := range r.Resolved {
		total += line.Quantity
	}
	return total
}

func (r Result) UnresolvedProductIDs() []string {
	ids := make([]string, 0, len(r.Unresolved))
	for _, line := range r.Unresolved {
		ids = append(ids, line.ProductID)
	}
	return ids
}

type catalogIndex struct {
	byInventory map[int64]inventory.Record
	byProduct   map[string]inventory.Record
	byName      map[string]inventory.Record
}

func indexCatalog(catalog []inventory.Record) catalogIndex {
	idx := catalogIndex{
		byInventory: make(map[int64]inventory.Record, len(catalog)),
		byProduct:   make(map[string]inventory.Record, len(catalog)),
		byName:      make(map[string]inventory.Record, len(catalog)),
	}
	// first record per key wins
	for _, rec := range catalog {
		if _, ok := idx.byInventory[rec.InventoryID]; !ok {
			idx.byInventory[rec.InventoryID] = rec
		}
		if rec.ProductID != "" {
			if _, ok := idx.byProduct[rec.ProductID]; !ok {
				idx.byProduct[rec.ProductID] = rec
			}
		}
		if rec.ProductName != "" {
			if _, ok := idx.byName[rec.ProductName]; !ok {
				idx.byName[rec.ProductName] = rec
			}
		}
	}
	return idx
}

// match tries the inventory id, then the product id. Lines saved without an
// inventory id fall back to name equality.
func (idx catalogIndex) match(line cart.Line) (inventory.Record, bool) {
	if line.InventoryID != 0 {
		if rec, ok := idx.byInventory[line.InventoryID]; ok {
			return rec, true
		}
	}
	if rec, ok := idx.byProduct[line.ProductID]; ok {
		return rec, true
	}
	if line.InventoryID == 0 && line.Name != "" {
		if rec, ok := idx.byName[line.Name]; ok {
			return rec, true
		}
	}
	return inventory.Record{}, false
}

// Reconcile resolves every cart line against one catalog snapshot. A line
// whose inventory row was already claimed by an earlier line is unresolved.
func Reconcile(lines []cart.Line, catalog []inventory.Record) Result {
	idx := indexCatalog(catalog)
	claimed := make(map[int64]struct{}, len(lines))
	result := Result{
		Resolved:   make([]OrderLine, 0, len(lines)),
		Unresolved: []cart.Line{},
	}
	for _, line := range lines {
		rec, ok := idx.match(line)
		if ok {
			if _, taken := claimed[rec.InventoryID]; taken {
				ok = false
			}
		}
		if !ok {
			result.Unresolved = append(result.Unresolved, line)
			continue
		}
		claimed[rec.InventoryID] = struct{}{}
		result.Resolved = append(result.Resolved, OrderLine{
			InventoryID: rec.InventoryID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return result
}
