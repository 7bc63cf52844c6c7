package catalog

import "time"

// Product is the authoritative inventory record. Order lines always take
// their unit price from here, never from client input.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Model      string    `json:"model,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	PriceCents int64     `json:"priceCents"`
	StockCount int       `json:"stockCount"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
