package dto

import (
	"time"

	"github.com/spec-kit/commerce-platform/internal/domain"
)

// ProductRequest payload for creating or updating a product.
type ProductRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Price       *float64           `json:"price"`
	Variations  []domain.Variation `json:"variations"`
}

// ProductResponse is the public view of a product.
type ProductResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Price       float64            `json:"price"`
	Variations  []domain.Variation `json:"variations"`
	OwnerID     string             `json:"owner_id"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewProductResponse maps the domain model to its public view.
func NewProductResponse(product *domain.Product) ProductResponse {
	variations := product.Variations
	if variations == nil {
		variations = []domain.Variation{}
	}
	return ProductResponse{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Variations:  variations,
		OwnerID:     product.OwnerID,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

// NewProductListResponse maps a list of products.
func NewProductListResponse(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		out = append(out, NewProductResponse(product))
	}
	return out
}
