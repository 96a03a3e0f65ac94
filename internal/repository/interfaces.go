package repository

import (
	"context"

	"github.com/smallbiznis/portal-auth/internal/domain"
)

// UserRepository exposes persistence for provider-linked user identities.
//
// FindBySubject and FindByID return domain.ErrIdentityNotFound when no
// record exists. Insert returns domain.ErrConflictingWrite when another
// writer created the same (provider, subject_id) row first; callers are
// expected to retry the lookup.
type UserRepository interface {
	FindBySubject(ctx context.Context, provider, subjectID string) (domain.UserIdentity, error)
	FindByID(ctx context.Context, id int64) (domain.UserIdentity, error)
	Insert(ctx context.Context, user domain.UserIdentity) (domain.UserIdentity, error)
	Update(ctx context.Context, user domain.UserIdentity) (domain.UserIdentity, error)
}
