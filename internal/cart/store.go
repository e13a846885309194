package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-prompt-market/internal/discount"
	// money also switches decimal JSON to plain numbers for prices
	"github.com/ariefcatur/go-prompt-market/internal/money"
)

var ErrInvalidItem = errors.New("invalid cart item")

// Store owns one buyer's cart. The item list is persisted through repo on
// every change; the open flag lives only in memory.
type Store struct {
	mu     sync.Mutex
	repo   Repository
	items  []Item
	isOpen bool
}

// Open rehydrates a store from repo. A fresh store starts closed.
func Open(ctx context.Context, repo Repository) (*Store, error) {
	items, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &Store{repo: repo, items: dedupe(items)}, nil
}

// AddItem appends item unless an entry with the same id exists. Duplicates
// are ignored without error.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	if item.ID == "" || item.Price.IsNegative() {
		return ErrInvalidItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(item.ID) >= 0 {
		return nil
	}
	next := append(s.cloneLocked(), item)
	return s.commitLocked(ctx, next)
}

// RemoveItem deletes the entry with id; absent ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	next := make([]Item, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	return s.commitLocked(ctx, next)
}

// ClearCart empties the cart unconditionally.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, []Item{})
}

func (s *Store) HasItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

// Items returns a copy in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalPrice is the undiscounted sum of prices, zero when empty.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

func (s *Store) DiscountedTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return discount.Apply(s.totalLocked(), len(s.items))
}

func (s *Store) OpenCart() {
	s.mu.Lock()
	s.isOpen = true
	s.mu.Unlock()
}

func (s *Store) CloseCart() {
	s.mu.Lock()
	s.isOpen = false
	s.mu.Unlock()
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

// Snapshot computes every derived value under one lock.
func (s *Store) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.totalLocked()
	n := len(s.items)
	return Summary{
		Items:           s.cloneLocked(),
		Count:           n,
		Total:           total,
		DiscountPct:     discount.For(n),
		DiscountedTotal: discount.Apply(total, n),
		IsOpen:          s.isOpen,
	}
}

// commitLocked persists next and only then swaps it in, so a failed save
// leaves the in-memory cart matching storage.
func (s *Store) commitLocked(ctx context.Context, next []Item) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.items = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) cloneLocked() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) totalLocked() decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(s.items))
	for _, it := range s.items {
		prices = append(prices, it.Price)
	}
	return money.Sum(prices...)
}

// dedupe keeps the first entry per id from hand-edited or legacy storage.
func dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
