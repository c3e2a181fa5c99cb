package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"forest-auth/internal/model"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Store(ctx context.Context, token model.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, username, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		token.Token, token.Username, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// Find looks up the persisted record by exact token string. Expiry is not
// checked here and the row is never deleted on this path; the caller decides
// and the reaper owns cleanup cadence.
func (r *RefreshTokenRepository) Find(ctx context.Context, token string) (model.RefreshToken, error) {
	var rec model.RefreshToken
	err := r.pool.QueryRow(ctx,
		`SELECT token, username, created_at, expires_at
		 FROM refresh_tokens WHERE token = $1`, token).
		Scan(&rec.Token, &rec.Username, &rec.CreatedAt, &rec.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w: %w", model.ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Rotate deletes the old record and inserts the replacement as one
// transaction. Deleting an already-gone record is tolerated so client
// retries stay replay-free; the caller must have validated the old token
// first, rotation itself is not an authorization check.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, next model.RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w: %w", model.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, oldToken); err != nil {
		return fmt.Errorf("rotate refresh token: delete old: %w: %w", model.ErrStoreUnavailable, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO refresh_tokens (token, username, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		next.Token, next.Username, next.CreatedAt, next.ExpiresAt)
	if err != nil {
		return fmt.Errorf("rotate refresh token: insert new: %w: %w", model.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("rotate refresh token: commit: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the record if present; absence is not an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w: %w", model.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
