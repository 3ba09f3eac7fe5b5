package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-platform/internal/api/dto"
	"github.com/spec-kit/commerce-platform/internal/auth"
	"github.com/spec-kit/commerce-platform/internal/service"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// AuthHandler exposes register, login and logout.
type AuthHandler struct {
	sessions *service.SessionService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email and password are required", nil)
	}

	user, token, exp, err := h.sessions.Register(c.UserContext(), service.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Bio:       req.Bio,
		Location:  req.Location,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      dto.NewUserResponse(user),
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, token, exp, err := h.sessions.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      dto.NewUserResponse(user),
	})
}

// Logout handles POST /auth/logout. No token at all is a bad request;
// a token that fails verification is unauthorized.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, ok := auth.BearerToken(c)
	if !ok {
		return apperrors.NewValidationError("no token provided", nil)
	}

	if err := h.sessions.Logout(c.UserContext(), token); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "logged out successfully"})
}
