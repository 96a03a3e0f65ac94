package session

import (
	"context"
	"errors"

	"github.com/smallbiznis/portal-auth/internal/domain"
	"github.com/smallbiznis/portal-auth/internal/repository"
)

// Codec maps a user identity to the compact session payload and back.
// Serialization stores only the local id; deserialization is a single
// point lookup and runs on every authenticated request.
type Codec struct {
	users repository.UserRepository
}

func NewCodec(users repository.UserRepository) *Codec {
	return &Codec{users: users}
}

// Serialize returns the session key for the given identity.
func (c *Codec) Serialize(user domain.UserIdentity) int64 {
	return user.ID
}

// Deserialize resolves the session key back to the full identity.
// A key with no backing record yields domain.ErrUnknownSession, which
// callers treat as "not authenticated" rather than a hard failure.
func (c *Codec) Deserialize(ctx context.Context, userID int64) (domain.UserIdentity, error) {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return domain.UserIdentity{}, domain.ErrUnknownSession
		}
		return domain.UserIdentity{}, err
	}
	return user, nil
}
