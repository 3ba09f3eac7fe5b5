package dto

// ProfileUpdateRequest carries optional profile changes. Pointers
// distinguish "absent" from "set to empty".
type ProfileUpdateRequest struct {
	Bio       *string `json:"bio"`
	Location  *string `json:"location"`
	AvatarURL *string `json:"avatarUrl"`
}
