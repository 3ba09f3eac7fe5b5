package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-platform/internal/api/dto"
	"github.com/spec-kit/commerce-platform/internal/auth"
	"github.com/spec-kit/commerce-platform/internal/service"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// ProductsHandler exposes product CRUD endpoints.
type ProductsHandler struct {
	products *service.ProductService
}

// NewProductsHandler constructs handler.
func NewProductsHandler(products *service.ProductService) *ProductsHandler {
	return &ProductsHandler{products: products}
}

// List handles GET /products (public).
func (h *ProductsHandler) List(c *fiber.Ctx) error {
	products, err := h.products.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewProductListResponse(products))
}

// Get handles GET /products/:id (public).
func (h *ProductsHandler) Get(c *fiber.Ctx) error {
	product, err := h.products.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewProductResponse(product))
}

// Create handles POST /products.
func (h *ProductsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	var req dto.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	product, err := h.products.Create(c.UserContext(), principal.User.ID, service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Variations:  req.Variations,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewProductResponse(product))
}

// Update handles PUT /products/:id.
func (h *ProductsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	var req dto.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	product, err := h.products.Update(c.UserContext(), principal.User.ID, c.Params("id"), service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Variations:  req.Variations,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewProductResponse(product))
}

// Delete handles DELETE /products/:id.
func (h *ProductsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	if err := h.products.Delete(c.UserContext(), principal.User.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "product deleted"})
}
