package cart

import "github.com/shopspring/decimal"

// Item is one prompt selected for purchase. ID matches the prompt id.
type Item struct {
	ID         string          `json:"id"`
	Slug       string          `json:"slug"`
	Title      string          `json:"title"`
	Thumbnail  string          `json:"thumbnail"`
	Platform   string          `json:"platform"`
	Price      decimal.Decimal `json:"price"`
	AuthorName string          `json:"authorName"`
}

// Summary is the cart as a view renders it.
type Summary struct {
	Items           []Item          `json:"items"`
	Count           int             `json:"count"`
	Total           decimal.Decimal `json:"total"`
	DiscountPct     int             `json:"discountPct"`
	DiscountedTotal decimal.Decimal `json:"discountedTotal"`
	IsOpen          bool            `json:"isOpen"`
}

// document is the persisted shape; isOpen is deliberately absent.
type document struct {
	Items []Item `json:"items"`
}
