package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaMigration = `
CREATE TABLE IF NOT EXISTS user_identities (
    id bigint PRIMARY KEY,
    provider text NOT NULL,
    subject_id text NOT NULL,
    email text NOT NULL,
    display_name text NOT NULL DEFAULT '',
    avatar_url text NOT NULL DEFAULT '',
    access_token text NOT NULL DEFAULT '',
    refresh_token text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT user_identities_provider_subject_unique
        UNIQUE (provider, subject_id)
);
`

// Migrate applies the identity schema. It is idempotent and runs at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaMigration); err != nil {
		return fmt.Errorf("apply identity schema: %w", err)
	}
	return nil
}
