package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/portal-auth/internal/domain"
)

// LoginStateStore persists the short-lived state nonce issued when a
// login begins. GetState returns (nil, nil) when the key is unknown or
// expired; that is an authentication failure, not a store error.
type LoginStateStore interface {
	SaveState(ctx context.Context, key string, state domain.LoginState, ttl time.Duration) error
	GetState(ctx context.Context, key string) (*domain.LoginState, error)
	DeleteState(ctx context.Context, key string) error
}
