package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"forest-auth/internal/model"
	"forest-auth/internal/signer"
)

// RefreshTokenTTL is fixed: a login session lives one day unless it is
// rotated or revoked earlier.
const RefreshTokenTTL = 24 * time.Hour

// RefreshTokenStore is the persistence surface the service needs.
// *repository.RefreshTokenRepository satisfies it.
type RefreshTokenStore interface {
	Store(ctx context.Context, token model.RefreshToken) error
	Find(ctx context.Context, token string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldToken string, next model.RefreshToken) error
	Delete(ctx context.Context, token string) error
}

// RefreshTokenService owns the lifecycle of persisted refresh credentials:
// signed token strings carrying a refresh marker, backed by a store row that
// is replaced on rotation and swept by the reaper after expiry.
type RefreshTokenService struct {
	signer signer.Signer
	tokens RefreshTokenStore
	now    func() time.Time
}

func NewRefreshTokenService(sgn signer.Signer, tokens RefreshTokenStore) *RefreshTokenService {
	return &RefreshTokenService{signer: sgn, tokens: tokens, now: time.Now}
}

// Issue mints a signed refresh credential for the subject and persists it.
func (s *RefreshTokenService) Issue(ctx context.Context, username string, role string) (model.RefreshToken, error) {
	rec, err := s.mint(username, role)
	if err != nil {
		return model.RefreshToken{}, err
	}

	if err := s.tokens.Store(ctx, rec); err != nil {
		return model.RefreshToken{}, err
	}

	slog.Info("refresh token issued", "username", username, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// Validate checks that the presented token exists, has not passed its stored
// expiry, and belongs to the given subject. The expired row is left in place;
// the reaper owns deletion cadence.
func (s *RefreshTokenService) Validate(ctx context.Context, tokenString string, username string) error {
	if tokenString == "" {
		return model.ErrInvalidRefresh
	}

	rec, err := s.tokens.Find(ctx, tokenString)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.ErrInvalidRefresh
	}
	if err != nil {
		return err
	}

	if rec.ExpiresAt.Before(s.now()) {
		slog.Warn("refresh token expired", "username", rec.Username, "expired_at", rec.ExpiresAt)
		return model.ErrInvalidRefresh
	}

	if rec.Username != username {
		return model.ErrInvalidRefresh
	}

	return nil
}

// Rotate atomically replaces the old credential with a fresh one. An absent
// old record does not fail the call; that tolerance keeps client retries
// replay-free, which is why the orchestrator must Validate before rotating.
func (s *RefreshTokenService) Rotate(ctx context.Context, oldToken string, username string, role string) (model.RefreshToken, error) {
	next, err := s.mint(username, role)
	if err != nil {
		return model.RefreshToken{}, err
	}

	if err := s.tokens.Rotate(ctx, oldToken, next); err != nil {
		return model.RefreshToken{}, err
	}

	slog.Info("refresh token rotated", "username", username)
	return next, nil
}

// Revoke deletes the credential; revoking an unknown token succeeds.
func (s *RefreshTokenService) Revoke(ctx context.Context, tokenString string) error {
	return s.tokens.Delete(ctx, tokenString)
}

func (s *RefreshTokenService) mint(username string, role string) (model.RefreshToken, error) {
	now := s.now().UTC()

	tokenString, err := s.signer.Mint(username, role, RefreshTokenTTL, true)
	if err != nil {
		return model.RefreshToken{}, err
	}

	return model.RefreshToken{
		Token:     tokenString,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}, nil
}
