package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"forest-auth/internal/model"
)

// UserRepository is the narrow surface of the user directory this service
// consumes. Users are owned by the user-management side of the platform; the
// auth core only flips enablement and rewrites password hashes.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.findBy(ctx, `lower(username) = lower($1)`, strings.TrimSpace(username))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findBy(ctx, `lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *UserRepository) findBy(ctx context.Context, where string, arg string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, enabled, created_at
		 FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Enabled, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w: %w", model.ErrStoreUnavailable, err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.Enabled, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// SetEnabledTx flips enablement inside the caller's transaction. Enabling an
// already-enabled user is a plain update, not an error.
func (r *UserRepository) SetEnabledTx(ctx context.Context, tx pgx.Tx, username string, enabled bool) error {
	tag, err := tx.Exec(ctx,
		`UPDATE users SET enabled = $2 WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username), enabled)
	if err != nil {
		return fmt.Errorf("set user enabled: %w: %w", model.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePasswordTx(ctx context.Context, tx pgx.Tx, username string, passwordHash string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username), passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w: %w", model.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
