package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-platform/internal/domain"
	"github.com/spec-kit/commerce-platform/internal/events"
	"github.com/spec-kit/commerce-platform/internal/repository"
	"github.com/spec-kit/commerce-platform/internal/upload"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// ProfileUpdate carries optional profile changes; nil means "leave as is".
type ProfileUpdate struct {
	Bio       *string
	Location  *string
	AvatarURL *string
	Avatar    *multipart.FileHeader
}

// ProfileService applies profile edits and avatar uploads.
type ProfileService struct {
	users      repository.UserRepository
	sink       *upload.DiskSink
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewProfileService builds the service.
func NewProfileService(users repository.UserRepository, sink *upload.DiskSink, dispatcher events.Dispatcher, logger *zap.Logger) *ProfileService {
	return &ProfileService{users: users, sink: sink, dispatcher: dispatcher, logger: logger}
}

// Update applies the requested changes. An uploaded file takes priority
// over an avatarUrl field; switching away from a locally stored avatar
// removes the old file.
func (s *ProfileService) Update(ctx context.Context, userID string, update ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}

	if update.Bio != nil {
		user.Profile.Bio = *update.Bio
	}
	if update.Location != nil {
		user.Profile.Location = *update.Location
	}

	if update.Avatar != nil {
		avatarURL, err := s.storeAvatar(user, update.Avatar)
		if err != nil {
			return nil, err
		}
		user.Profile.AvatarURL = avatarURL
	} else if update.AvatarURL != nil && strings.TrimSpace(*update.AvatarURL) != "" {
		s.removeLocalAvatar(user)
		user.Profile.AvatarURL = strings.TrimSpace(*update.AvatarURL)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvatar stores the uploaded file and points the profile at it.
func (s *ProfileService) SetAvatar(ctx context.Context, userID string, file *multipart.FileHeader) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}

	avatarURL, err := s.storeAvatar(user, file)
	if err != nil {
		return nil, err
	}
	user.Profile.AvatarURL = avatarURL

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventAvatarUpdated, user.ID,
			events.AvatarUpdatedPayload{AvatarURL: avatarURL}))
	}
	return user, nil
}

func (s *ProfileService) storeAvatar(user *domain.User, file *multipart.FileHeader) (string, error) {
	avatarURL, err := s.sink.Save("users", file)
	if err != nil {
		return "", err
	}
	s.removeLocalAvatar(user)
	return avatarURL, nil
}

func (s *ProfileService) removeLocalAvatar(user *domain.User) {
	if !strings.HasPrefix(user.Profile.AvatarURL, "/uploads/") {
		return
	}
	if err := s.sink.Remove(user.Profile.AvatarURL); err != nil {
		s.logger.Warn("remove old avatar failed",
			zap.String("user_id", user.ID),
			zap.String("path", user.Profile.AvatarURL),
			zap.Error(err))
	}
}
