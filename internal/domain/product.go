package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxPrice is the upper bound for a product price.
	MaxPrice = 999999.99

	// LowStockThreshold marks active products that need restocking.
	LowStockThreshold = 10
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Tags        []string  `json:"tags"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the product, including the tag slice, so
// callers can never mutate cached state through a returned value.
func (p Product) Clone() Product {
	out := p
	if p.Tags != nil {
		out.Tags = make([]string, len(p.Tags))
		copy(out.Tags, p.Tags)
	}
	return out
}

// CloneAll returns a deep copy of a product collection.
func CloneAll(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}
