package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/portal-auth/internal/domain"
)

// Compile-time interface assertion.
var _ UserRepository = (*PostgresUserRepo)(nil)

const uniqueViolation = "23505"

const identityColumns = `id, provider, subject_id, email, display_name, avatar_url, access_token, refresh_token, created_at, updated_at`

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) FindBySubject(ctx context.Context, provider, subjectID string) (domain.UserIdentity, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_identities WHERE provider = $1 AND subject_id = $2`, identityColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, provider, subjectID), "find by subject")
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (domain.UserIdentity, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_identities WHERE id = $1`, identityColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id), "find by id")
}

func (r *PostgresUserRepo) Insert(ctx context.Context, user domain.UserIdentity) (domain.UserIdentity, error) {
	query := fmt.Sprintf(`
INSERT INTO user_identities (id, provider, subject_id, email, display_name, avatar_url, access_token, refresh_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING %s`, identityColumns)

	row := r.db.QueryRow(ctx, query,
		user.ID,
		user.Provider,
		user.SubjectID,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.AccessToken,
		user.RefreshToken,
		user.CreatedAt,
	)
	created, err := r.scanOne(row, "insert identity")
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.UserIdentity{}, domain.ErrConflictingWrite
		}
		return domain.UserIdentity{}, err
	}
	return created, nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, user domain.UserIdentity) (domain.UserIdentity, error) {
	query := fmt.Sprintf(`
UPDATE user_identities
SET email = $3, display_name = $4, avatar_url = $5, access_token = $6, refresh_token = $7, updated_at = $8
WHERE provider = $1 AND subject_id = $2
RETURNING %s`, identityColumns)

	row := r.db.QueryRow(ctx, query,
		user.Provider,
		user.SubjectID,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.AccessToken,
		user.RefreshToken,
		user.UpdatedAt,
	)
	return r.scanOne(row, "update identity")
}

func (r *PostgresUserRepo) scanOne(row pgx.Row, op string) (domain.UserIdentity, error) {
	var u domain.UserIdentity
	err := row.Scan(
		&u.ID,
		&u.Provider,
		&u.SubjectID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.AccessToken,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserIdentity{}, domain.ErrIdentityNotFound
		}
		return domain.UserIdentity{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
