package cart

import (
	"context"
	"sync"
)

// Slot names one persisted copy of a cart.
type Slot string

const (
	SlotAuthenticated Slot = "cart_items"
	SlotGuest         Slot = "guest_cart"
)

// readOrder is the rehydration precedence.
var readOrder = []Slot{SlotAuthenticated, SlotGuest}

func (s Slot) IsValid() bool {
	return s == SlotAuthenticated || s == SlotGuest
}

// Slots is the key-value storage holding serialized carts per cart session.
// Read reports ok=false when the slot has never been written or was erased.
type Slots interface {
	Read(ctx context.Context, session string, slot Slot) (payload string, ok bool, err error)
	Write(ctx context.Context, session string, slot Slot, payload string) error
	Erase(ctx context.Context, session string, slots ...Slot) error
}

// MemorySlots keeps slots in process memory.
type MemorySlots struct {
	mu   sync.Mutex
	data map[string]map[Slot]string
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{data: make(map[string]map[Slot]string)}
}

func (m *MemorySlots) Read(_ context.Context, session string, slot Slot) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.data[session][slot]
	return payload, ok, nil
}

func (m *MemorySlots) Write(_ context.Context, session string, slot Slot, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[session] == nil {
		m.data[session] = make(map[Slot]string)
	}
	m.data[session][slot] = payload
	return nil
}

func (m *MemorySlots) Erase(_ context.Context, session string, slots ...Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range slots {
		delete(m.data[session], slot)
	}
	return nil
}
