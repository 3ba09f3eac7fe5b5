package domain

import "time"

// Variation is a named price alternative of a product.
type Variation struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Product is owned by the user who created it; only the owner may update
// or delete it.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Variations  []Variation
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
