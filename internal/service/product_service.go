package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/commerce-platform/internal/domain"
	"github.com/spec-kit/commerce-platform/internal/events"
	"github.com/spec-kit/commerce-platform/internal/repository"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// ProductInput carries product fields; nil pointers on update mean
// "leave as is".
type ProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	Variations  []domain.Variation
}

// ProductService implements product CRUD with ownership checks.
type ProductService struct {
	products   repository.ProductRepository
	dispatcher events.Dispatcher
}

// NewProductService builds the service.
func NewProductService(products repository.ProductRepository, dispatcher events.Dispatcher) *ProductService {
	return &ProductService{products: products, dispatcher: dispatcher}
}

// List returns all products, newest first.
func (s *ProductService) List(ctx context.Context) ([]*domain.Product, error) {
	return s.products.List(ctx)
}

// Get returns one product by id.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("product", nil)
		}
		return nil, err
	}
	return product, nil
}

// Create stores a new product owned by the caller.
func (s *ProductService) Create(ctx context.Context, ownerID string, input ProductInput) (*domain.Product, error) {
	if input.Name == nil || *input.Name == "" || input.Price == nil {
		return nil, apperrors.NewValidationError("name and price required", nil)
	}

	product := &domain.Product{
		Name:       *input.Name,
		Price:      *input.Price,
		Variations: input.Variations,
		OwnerID:    ownerID,
	}
	if input.Description != nil {
		product.Description = *input.Description
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventProductCreated, ownerID,
			events.ProductCreatedPayload{ProductID: product.ID, Name: product.Name, Price: product.Price}))
	}
	return product, nil
}

// Update applies changes to an owned product.
func (s *ProductService) Update(ctx context.Context, callerID, id string, input ProductInput) (*domain.Product, error) {
	product, err := s.ownedProduct(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Variations != nil {
		product.Variations = input.Variations
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes an owned product.
func (s *ProductService) Delete(ctx context.Context, callerID, id string) error {
	product, err := s.ownedProduct(ctx, callerID, id)
	if err != nil {
		return err
	}

	if err := s.products.Delete(ctx, product.ID); err != nil {
		return err
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventProductDeleted, callerID, nil))
	}
	return nil
}

func (s *ProductService) ownedProduct(ctx context.Context, callerID, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("product", nil)
		}
		return nil, err
	}
	if product.OwnerID != callerID {
		return nil, apperrors.NewForbidden("you do not own this product")
	}
	return product, nil
}
