package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/internal/inventory"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

type productLookup interface {
	FindByProductID(ctx context.Context, productID string) (*inventory.Record, error)
}

// View is the cart as rendered to clients.
type View struct {
	Session    string          `json:"cart_session"`
	Lines      []Line          `json:"lines"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// ViewOf renders the current state of store.
func ViewOf(store *Store) *View {
	lines := store.Lines()
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return &View{
		Session:    store.Session(),
		Lines:      lines,
		TotalItems: total,
		Subtotal:   subtotal(lines),
	}
}

// Service opens per-session stores and snapshots products from the catalog
// before they are added.
type Service struct {
	slots    Slots
	products productLookup
	logg     *logger.Logger
	metrics  persistRecorder
}

func NewService(slots Slots, products productLookup, logg *logger.Logger, metrics persistRecorder) (*Service, error) {
	if slots == nil {
		return nil, fmt.Errorf("cart slots required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &Service{slots: slots, products: products, logg: logg, metrics: metrics}, nil
}

// Open rehydrates the store of a cart session.
func (s *Service) Open(ctx context.Context, session string) (*Store, error) {
	opts := []Option{WithLogger(s.logg)}
	if s.metrics != nil {
		opts = append(opts, WithMetrics(s.metrics))
	}
	return Open(ctx, s.slots, session, opts...)
}

func (s *Service) View(ctx context.Context, session string) (*View, error) {
	store, err := s.Open(ctx, session)
	if err != nil {
		return nil, err
	}
	return ViewOf(store), nil
}

// AddItem looks the product up and adds qty units at the current catalog price.
func (s *Service) AddItem(ctx context.Context, session, productID string, qty int) (*View, error) {
	store, err := s.Open(ctx, session)
	if err != nil {
		return nil, err
	}
	record, err := s.products.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	product := Product{
		ProductID:   record.ProductID,
		InventoryID: record.InventoryID,
		Name:        record.ProductName,
		UnitPrice:   record.UnitPrice,
		ImageRef:    record.ImageRef,
		Stock:       record.QuantityOnHand,
	}
	if err := store.Add(ctx, product, qty); err != nil {
		return nil, err
	}
	return ViewOf(store), nil
}

func (s *Service) UpdateItem(ctx context.Context, session, productID string, qty int) (*View, error) {
	store, err := s.Open(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateQuantity(ctx, productID, qty); err != nil {
		return nil, err
	}
	return ViewOf(store), nil
}

func (s *Service) RemoveItem(ctx context.Context, session, productID string) (*View, error) {
	store, err := s.Open(ctx, session)
	if err != nil {
		return nil, err
	}
	store.Remove(ctx, productID)
	return ViewOf(store), nil
}

func (s *Service) Clear(ctx context.Context, session string) error {
	store, err := s.Open(ctx, session)
	if err != nil {
		return err
	}
	store.Clear(ctx)
	return nil
}
