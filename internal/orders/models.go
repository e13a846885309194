package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	// money also switches decimal JSON to plain numbers for prices
	"github.com/ariefcatur/go-prompt-market/internal/money"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNoItems           = errors.New("order has no items")
	ErrInvalidItem       = errors.New("invalid order item")
)

// Item is the snapshot of one cart entry taken when the order is placed.
type Item struct {
	PromptID   string          `json:"promptId"`
	Slug       string          `json:"slug"`
	Title      string          `json:"title"`
	Thumbnail  string          `json:"thumbnail"`
	Platform   string          `json:"platform"`
	Price      decimal.Decimal `json:"price"`
	AuthorName string          `json:"authorName"`
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId,omitempty"` // empty for anonymous buyers
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type NewOrder struct {
	UserID        string
	Items         []Item
	PaymentMethod string
}

func (n NewOrder) Validate() error {
	if len(n.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range n.Items {
		if strings.TrimSpace(it.PromptID) == "" || it.Price.IsNegative() {
			return ErrInvalidItem
		}
	}
	return nil
}

// Total is the plain sum of item prices; cart discounts are not applied
// to the order record.
func (n NewOrder) Total() decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(n.Items))
	for _, it := range n.Items {
		prices = append(prices, it.Price)
	}
	return money.Sum(prices...)
}

type Repository interface {
	Create(ctx context.Context, in NewOrder) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, to Status) (Order, error)
}
