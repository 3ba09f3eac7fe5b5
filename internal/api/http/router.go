package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-platform/internal/api/http/handlers"
	"github.com/spec-kit/commerce-platform/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Products       *handlers.ProductsHandler
	AuthMiddleware *auth.AuthMiddleware
	UploadDir      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/profile", cfg.Users.GetProfile)
	users.Put("/profile", cfg.Users.UpdateProfile)
	users.Post("/profile/avatar", cfg.Users.UploadAvatar)

	products := app.Group("/products")
	products.Get("/", cfg.Products.List)
	products.Get("/:id", cfg.Products.Get)
	products.Post("/", cfg.AuthMiddleware.Handle, cfg.Products.Create)
	products.Put("/:id", cfg.AuthMiddleware.Handle, cfg.Products.Update)
	products.Delete("/:id", cfg.AuthMiddleware.Handle, cfg.Products.Delete)
}
