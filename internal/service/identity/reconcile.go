package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/adapter/oauth"
	"github.com/smallbiznis/portal-auth/internal/domain"
	"github.com/smallbiznis/portal-auth/internal/repository"
)

// Tokens carries the opaque provider credentials captured on exchange.
// RefreshToken may be empty: providers commonly omit it on repeat consent.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Reconciler keeps exactly one local UserIdentity in sync per
// (provider, subject id) pair. It decides insert vs. update and returns
// the authoritative post-write record.
type Reconciler struct {
	users  repository.UserRepository
	node   *snowflake.Node
	logger *zap.Logger
}

func NewReconciler(users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.L()
	}
	return &Reconciler{users: users, node: node, logger: logger}
}

// Reconcile inserts or updates the identity record for the given profile.
//
// A profile without an email fails with domain.ErrMissingEmail before any
// store mutation. A stored refresh token is preserved when the incoming
// one is empty. An insert that loses a uniqueness race falls through to
// the update path once; concurrent updates for the same subject are
// last-write-wins by design, because every field is re-derivable from the
// provider on the next login.
func (r *Reconciler) Reconcile(ctx context.Context, provider string, profile oauth.Profile, tokens Tokens) (domain.UserIdentity, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return domain.UserIdentity{}, domain.ErrMissingEmail
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = domain.DefaultDisplayName
	}

	existing, err := r.users.FindBySubject(ctx, provider, profile.Subject)
	switch {
	case err == nil:
		return r.update(ctx, existing, email, name, profile, tokens)
	case errors.Is(err, domain.ErrIdentityNotFound):
		// fall through to insert
	default:
		return domain.UserIdentity{}, fmt.Errorf("lookup identity: %w", err)
	}

	now := time.Now().UTC()
	created, err := r.users.Insert(ctx, domain.UserIdentity{
		ID:           r.node.Generate().Int64(),
		Provider:     provider,
		SubjectID:    profile.Subject,
		Email:        email,
		DisplayName:  name,
		AvatarURL:    profile.Picture,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err == nil {
		r.logger.Info("identity created",
			zap.Int64("user_id", created.ID),
			zap.String("provider", provider),
		)
		return created, nil
	}
	if !errors.Is(err, domain.ErrConflictingWrite) {
		return domain.UserIdentity{}, fmt.Errorf("insert identity: %w", err)
	}

	// Another login for the same subject won the insert race; re-read and
	// update that record instead.
	existing, err = r.users.FindBySubject(ctx, provider, profile.Subject)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("reread after conflict: %w", err)
	}
	return r.update(ctx, existing, email, name, profile, tokens)
}

func (r *Reconciler) update(ctx context.Context, existing domain.UserIdentity, email, name string, profile oauth.Profile, tokens Tokens) (domain.UserIdentity, error) {
	refresh := tokens.RefreshToken
	if refresh == "" {
		// Providers omit the refresh token on repeat consent; keep the one
		// already on file so offline refresh keeps working.
		refresh = existing.RefreshToken
	}

	existing.Email = email
	existing.DisplayName = name
	existing.AvatarURL = profile.Picture
	existing.AccessToken = tokens.AccessToken
	existing.RefreshToken = refresh
	existing.UpdatedAt = time.Now().UTC()

	updated, err := r.users.Update(ctx, existing)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("update identity: %w", err)
	}
	r.logger.Info("identity updated",
		zap.Int64("user_id", updated.ID),
		zap.String("provider", updated.Provider),
	)
	return updated, nil
}
