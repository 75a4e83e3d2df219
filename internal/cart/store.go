package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

type persistRecorder interface {
	IncPersistFailure(slot string)
}

// Store owns the cart of one cart session. Every successful mutation is
// written to the authenticated slot; write failures are logged and counted but
// never returned, so the in-memory lines stay authoritative.
type Store struct {
	mu      sync.Mutex
	session string
	slots   Slots
	lines   []Line
	logg    *logger.Logger
	metrics persistRecorder
}

type Option func(*Store)

func WithLogger(logg *logger.Logger) Option {
	return func(s *Store) { s.logg = logg }
}

func WithMetrics(m persistRecorder) Option {
	return func(s *Store) { s.metrics = m }
}

// Open rehydrates the cart of session from the first slot present in
// precedence order. Missing or malformed payloads yield an empty cart.
func Open(ctx context.Context, slots Slots, session string, opts ...Option) (*Store, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}
	if slots == nil {
		return nil, fmt.Errorf("cart slots required")
	}

	s := &Store{session: session, slots: slots}
	for _, opt := range opts {
		opt(s)
	}

	lines, err := s.readLocked(s.logg.WithCartSession(ctx, session))
	if err != nil {
		return nil, err
	}
	s.lines = lines
	return s, nil
}

// readLocked decodes the first slot present in precedence order.
func (s *Store) readLocked(ctx context.Context) ([]Line, error) {
	for _, slot := range readOrder {
		payload, ok, err := s.slots.Read(ctx, s.session, slot)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
		}
		if !ok || strings.TrimSpace(payload) == "" {
			continue
		}
		lines := s.decode(ctx, slot, payload)
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"slot":  string(slot),
			"lines": len(lines),
		}), "cart restored")
		return lines, nil
	}
	return nil, nil
}

func (s *Store) decode(ctx context.Context, slot Slot, payload string) []Line {
	var raw []Line
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"slot":  string(slot),
			"error": err.Error(),
		}), "discarding unreadable cart payload")
		return nil
	}

	lines := make([]Line, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, line := range raw {
		if _, dup := seen[line.ProductID]; dup || !line.valid() {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"slot":       string(slot),
				"product_id": line.ProductID,
				"quantity":   line.Quantity,
				"stock":      line.AvailableStock,
			}), "dropping invalid cart line")
			continue
		}
		seen[line.ProductID] = struct{}{}
		lines = append(lines, line)
	}
	return lines
}

func (s *Store) Session() string {
	return s.session
}

// Add puts qty units of product in the cart, merging with an existing line.
// When the merged quantity exceeds product.Stock the cart is left unchanged.
func (s *Store) Add(ctx context.Context, product Product, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	product.ProductID = strings.TrimSpace(product.ProductID)
	if product.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if product.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(product.ProductID)
	inCart := 0
	if idx >= 0 {
		inCart = s.lines[idx].Quantity
	}
	if qty > product.Stock-inCart {
		return quantityExceedsStock(product.ProductID, product.Stock, inCart, qty)
	}
	proposed := inCart + qty

	if idx >= 0 {
		s.lines[idx].Quantity = proposed
		s.lines[idx].AvailableStock = product.Stock
	} else {
		s.lines = append(s.lines, product.line(proposed))
	}
	s.persistLocked(ctx)
	return nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line; an unknown product is ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(productID)
	if idx < 0 {
		return nil
	}
	if qty <= 0 {
		s.removeLocked(ctx, idx)
		return nil
	}
	line := s.lines[idx]
	if qty > line.AvailableStock {
		return quantityExceedsStock(line.ProductID, line.AvailableStock, line.Quantity, qty)
	}
	if qty == line.Quantity {
		return nil
	}
	s.lines[idx].Quantity = qty
	s.persistLocked(ctx)
	return nil
}

func (s *Store) Remove(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(productID); idx >= 0 {
		s.removeLocked(ctx, idx)
	}
}

// Clear empties the cart and erases both slots.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	if err := s.slots.Erase(ctx, s.session, readOrder...); err != nil {
		s.logg.Error(s.logg.WithCartSession(ctx, s.session), "failed to erase cart slots", err)
	}
}

// ClearCheckedOut removes the quantities in checkedOut from the persisted cart.
// The cart is re-read first so lines added or raised by other requests while
// the checkout ran survive. With nothing left it behaves like Clear.
func (s *Store) ClearCheckedOut(ctx context.Context, checkedOut []Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = s.logg.WithCartSession(ctx, s.session)

	current, err := s.readLocked(ctx)
	if err != nil {
		s.logg.Error(ctx, "failed to re-read cart after checkout", err)
		current = nil
	}

	sold := make(map[string]int, len(checkedOut))
	for _, line := range checkedOut {
		sold[line.ProductID] += line.Quantity
	}
	remaining := make([]Line, 0, len(current))
	for _, line := range current {
		line.Quantity -= sold[line.ProductID]
		if line.Quantity > 0 {
			remaining = append(remaining, line)
		}
	}

	if len(remaining) == 0 {
		s.lines = nil
		if err := s.slots.Erase(ctx, s.session, readOrder...); err != nil {
			s.logg.Error(ctx, "failed to erase cart slots", err)
		}
		return
	}

	s.lines = remaining
	s.persistLocked(ctx)
	if err := s.slots.Erase(ctx, s.session, SlotGuest); err != nil {
		s.logg.Error(ctx, "failed to erase guest cart", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "lines", len(remaining)), "kept cart lines changed during checkout")
}

// HandoffToGuest copies the cart into the guest slot so it survives a sign-in
// redirect. The cart itself is not modified.
func (s *Store) HandoffToGuest(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(ctx, SlotGuest); err != nil {
		s.countPersistFailure(SlotGuest)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return nil
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subtotal(s.lines)
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *Store) indexLocked(productID string) int {
	productID = strings.TrimSpace(productID)
	for i, line := range s.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(ctx context.Context, idx int) {
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.writeLocked(ctx, SlotAuthenticated); err != nil {
		s.countPersistFailure(SlotAuthenticated)
		s.logg.Error(s.logg.WithCartSession(ctx, s.session), "failed to persist cart", err)
	}
}

func (s *Store) countPersistFailure(slot Slot) {
	if s.metrics != nil {
		s.metrics.IncPersistFailure(string(slot))
	}
}

func (s *Store) writeLocked(ctx context.Context, slot Slot) error {
	lines := s.lines
	if lines == nil {
		lines = []Line{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return s.slots.Write(ctx, s.session, slot, string(payload))
}

func subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}
