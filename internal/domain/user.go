package domain

import "time"

// DefaultDisplayName is stored when the provider profile carries no name.
const DefaultDisplayName = "Unknown User"

// UserIdentity is the local record for an end user authenticated through
// an external identity provider. Exactly one row exists per
// (Provider, SubjectID) pair; rows are created on first login, updated on
// every subsequent login, and never deleted.
type UserIdentity struct {
	ID           int64     `json:"id"`
	Provider     string    `json:"provider"`
	SubjectID    string    `json:"subject_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
