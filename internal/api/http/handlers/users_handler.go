package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-platform/internal/api/dto"
	"github.com/spec-kit/commerce-platform/internal/auth"
	"github.com/spec-kit/commerce-platform/internal/service"
	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// UsersHandler exposes the profile endpoints.
type UsersHandler struct {
	profiles *service.ProfileService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(profiles *service.ProfileService) *UsersHandler {
	return &UsersHandler{profiles: profiles}
}

// GetProfile handles GET /users/profile.
func (h *UsersHandler) GetProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	return c.JSON(dto.NewUserResponse(principal.User))
}

// UpdateProfile handles PUT /users/profile. Accepts JSON, or multipart
// form data with an optional "avatar" file; an uploaded file wins over an
// avatarUrl field.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	update, err := parseProfileUpdate(c)
	if err != nil {
		return err
	}

	user, err := h.profiles.Update(c.UserContext(), principal.User.ID, update)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "profile updated",
		"profile": user.Profile,
	})
}

// UploadAvatar handles POST /users/profile/avatar.
func (h *UsersHandler) UploadAvatar(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return apperrors.NewValidationError("no file uploaded", nil)
	}

	user, err := h.profiles.SetAvatar(c.UserContext(), principal.User.ID, file)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message":   "avatar uploaded",
		"avatarUrl": user.Profile.AvatarURL,
	})
}

func parseProfileUpdate(c *fiber.Ctx) (service.ProfileUpdate, error) {
	update := service.ProfileUpdate{}

	if file, err := c.FormFile("avatar"); err == nil {
		update.Avatar = file
		if v := c.FormValue("bio"); v != "" {
			bio := v
			update.Bio = &bio
		}
		if v := c.FormValue("location"); v != "" {
			location := v
			update.Location = &location
		}
		return update, nil
	}

	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return update, apperrors.NewValidationError("invalid payload", nil)
	}
	update.Bio = req.Bio
	update.Location = req.Location
	update.AvatarURL = req.AvatarURL
	return update, nil
}
