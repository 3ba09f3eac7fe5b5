package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-platform/internal/auth"
	"github.com/spec-kit/commerce-platform/internal/config"
	"github.com/spec-kit/commerce-platform/internal/domain"
	"github.com/spec-kit/commerce-platform/internal/events"
	"github.com/spec-kit/commerce-platform/internal/repository"
	"github.com/spec-kit/commerce-platform/internal/revocation"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	Bio       string
	Location  string
	AvatarURL string
}

// SessionService issues tokens on register/login, records their liveness,
// and revokes them on logout.
type SessionService struct {
	users      repository.UserRepository
	store      revocation.Store
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// SessionDependencies encapsulates collaborator requirements.
type SessionDependencies struct {
	UserRepo   repository.UserRepository
	Revocation revocation.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewSessionService builds the service.
func NewSessionService(cfg config.AuthConfig, deps SessionDependencies) *SessionService {
	return &SessionService{
		users:      deps.UserRepo,
		store:      deps.Revocation,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL()),
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new customer account and issues a first token.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Profile: domain.Profile{
			Bio:       input.Bio,
			Location:  input.Location,
			AvatarURL: input.AvatarURL,
		},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID,
		events.UserRegisteredPayload{Email: user.Email, Name: user.Name}))
	return user, token, exp, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password produce the same error so callers cannot probe for accounts.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.NewEvent(events.EventUserLoggedIn, user.ID, nil))
	return user, token, exp, nil
}

// Logout revokes the token's liveness record. A token that is already not
// live still logs out successfully; only a token that fails verification is
// rejected.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	userID, err := s.tokenMgr.Parse(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	if err := s.store.Revoke(ctx, userID, token); err != nil {
		// Best effort: the token still dies at its natural expiry.
		s.logger.Warn("revoke failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.publish(ctx, events.NewEvent(events.EventUserLoggedOut, userID, nil))
	return nil
}

// issue signs a token and records it live. Recording is best effort:
// a store hiccup must not fail an otherwise valid login.
func (s *SessionService) issue(ctx context.Context, userID string) (string, time.Time, error) {
	token, exp, err := s.tokenMgr.Generate(userID)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.store.RecordLive(ctx, userID, token, s.tokenMgr.TTL()); err != nil {
		s.logger.Warn("record token liveness failed", zap.String("user_id", userID), zap.Error(err))
	}
	return token, exp, nil
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *SessionService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// RevocationStore exposes the liveness store for middleware usage.
func (s *SessionService) RevocationStore() revocation.Store {
	return s.store
}
