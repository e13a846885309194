package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps orders in process memory; they are gone on restart.
type MemoryRepo struct {
	mu     sync.RWMutex
	orders map[string]Order
	now    func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: map[string]Order{}, now: func() time.Time { return time.Now().UTC() }}
}

func (m *MemoryRepo) Create(_ context.Context, in NewOrder) (Order, error) {
	if err := in.Validate(); err != nil {
		return Order{}, err
	}
	now := m.now()
	o := Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Items:         append([]Item(nil), in.Items...),
		Total:         in.Total(),
		Status:        StatusPending,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()
	return clone(o), nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (m *MemoryRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	m.mu.RLock()
	out := []Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, clone(o))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id string, to Status) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return clone(o), nil
}

func clone(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	return o
}
