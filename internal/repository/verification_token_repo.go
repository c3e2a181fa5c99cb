package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"forest-auth/internal/model"
)

type VerificationTokenRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationTokenRepository(pool *pgxpool.Pool) *VerificationTokenRepository {
	return &VerificationTokenRepository{pool: pool}
}

func (r *VerificationTokenRepository) Store(ctx context.Context, token model.VerificationToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO verification_tokens (token, username, expires_at)
		 VALUES ($1, $2, $3)`,
		token.Token, token.Username, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store verification token: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// Find returns the record without consuming it. The orchestrator checks
// expiry and performs the account mutation plus deletion in one transaction,
// so a consumed token cannot outlive the mutation it authorized.
func (r *VerificationTokenRepository) Find(ctx context.Context, token string) (model.VerificationToken, error) {
	var rec model.VerificationToken
	err := r.pool.QueryRow(ctx,
		`SELECT token, username, expires_at
		 FROM verification_tokens WHERE token = $1`, token).
		Scan(&rec.Token, &rec.Username, &rec.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.VerificationToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.VerificationToken{}, fmt.Errorf("find verification token: %w: %w", model.ErrStoreUnavailable, err)
	}
	return rec, nil
}

func (r *VerificationTokenRepository) DeleteTx(ctx context.Context, tx pgx.Tx, token string) error {
	_, err := tx.Exec(ctx, `DELETE FROM verification_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete verification token: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}
