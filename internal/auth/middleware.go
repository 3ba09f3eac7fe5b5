package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-platform/internal/domain"
	"github.com/spec-kit/commerce-platform/internal/repository"
	"github.com/spec-kit/commerce-platform/internal/revocation"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. The user's password hash
// stays inside the domain model and is never serialized by handlers.
type Principal struct {
	User  *domain.User
	Token string
}

// AuthMiddleware validates bearer tokens, checks the liveness record, and
// loads the principal.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
	store  revocation.Store
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, store revocation.Store, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, store: store, logger: logger}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := BearerToken(c)
	if !ok {
		return apperrors.NewUnauthorized("no token, authorization denied")
	}

	userID, err := m.tokens.Parse(token)
	if err != nil {
		return apperrors.NewUnauthorized("token is not valid")
	}

	live, err := m.store.IsLive(c.UserContext(), userID, token)
	if err != nil {
		// Fail open: signature and expiry already gate the request, so a
		// store outage degrades to advisory revocation instead of taking
		// the whole auth path down.
		m.logger.Warn("liveness check failed", zap.String("user_id", userID), zap.Error(err))
	} else if !live {
		return apperrors.NewUnauthorized("token revoked")
	}

	user, err := m.users.GetByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user, Token: token})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
