package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"forest-auth/internal/mailer"
	"forest-auth/internal/model"
	"forest-auth/internal/signer"
)

// VerificationTokenTTL is fixed at one day for both activation and password
// reset tokens.
const VerificationTokenTTL = 24 * time.Hour

// UserDirectory is the external user-management collaborator.
// *repository.UserRepository satisfies it.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	SetEnabledTx(ctx context.Context, tx pgx.Tx, username string, enabled bool) error
	UpdatePasswordTx(ctx context.Context, tx pgx.Tx, username string, passwordHash string) error
}

// VerificationTokenStore persists single-use tokens.
// *repository.VerificationTokenRepository satisfies it.
type VerificationTokenStore interface {
	Store(ctx context.Context, token model.VerificationToken) error
	Find(ctx context.Context, token string) (model.VerificationToken, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, token string) error
}

// RefreshTokens is what the orchestrator needs from the refresh token
// lifecycle. *RefreshTokenService satisfies it.
type RefreshTokens interface {
	Issue(ctx context.Context, username string, role string) (model.RefreshToken, error)
	Validate(ctx context.Context, tokenString string, username string) error
	Rotate(ctx context.Context, oldToken string, username string, role string) (model.RefreshToken, error)
	Revoke(ctx context.Context, tokenString string) error
}

// TxRunner runs a function inside one database transaction.
// *database.DB satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// Links holds the URL prefixes embedded in activation and reset mails; the
// token string is appended to each.
type Links struct {
	AccountVerification string
	PasswordReset       string
}

// AuthService orchestrates login, refresh, logout, registration, account
// activation, and password reset against the token stores and the signer.
type AuthService struct {
	users         UserDirectory
	verifications VerificationTokenStore
	refresh       RefreshTokens
	signer        signer.Signer
	hasher        Hasher
	mail          mailer.Dispatcher
	db            TxRunner
	accessTTL     time.Duration
	links         Links
	now           func() time.Time
}

func NewAuthService(
	users UserDirectory,
	verifications VerificationTokenStore,
	refresh RefreshTokens,
	sgn signer.Signer,
	hasher Hasher,
	mail mailer.Dispatcher,
	db TxRunner,
	accessTTL time.Duration,
	links Links,
) *AuthService {
	return &AuthService{
		users:         users,
		verifications: verifications,
		refresh:       refresh,
		signer:        sgn,
		hasher:        hasher,
		mail:          mail,
		db:            db,
		accessTTL:     accessTTL,
		links:         links,
		now:           time.Now,
	}
}

// Login verifies the credentials and mints an access/refresh token pair.
// Every failure collapses to ErrBadCredentials at this boundary so callers
// cannot enumerate accounts or tell a wrong password from a disabled user.
func (s *AuthService) Login(ctx context.Context, username string, password string) (model.AuthResponse, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		slog.Warn("login rejected", "username", username, "reason", "unknown user")
		return model.AuthResponse{}, model.ErrBadCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Warn("login rejected", "username", username, "reason", "password mismatch")
		return model.AuthResponse{}, model.ErrBadCredentials
	}

	if !user.Enabled {
		slog.Warn("login rejected", "username", username, "reason", "account not activated")
		return model.AuthResponse{}, model.ErrBadCredentials
	}

	accessToken, expiresAt, err := s.mintAccessToken(user.Username, user.Role)
	if err != nil {
		slog.Error("login failed to mint access token", "username", username, "error", err)
		return model.AuthResponse{}, model.ErrBadCredentials
	}

	refreshToken, err := s.refresh.Issue(ctx, user.Username, user.Role)
	if err != nil {
		slog.Error("login failed to issue refresh token", "username", username, "error", err)
		return model.AuthResponse{}, model.ErrBadCredentials
	}

	slog.Info("login succeeded", "username", user.Username)
	return model.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		ExpiresAt:    expiresAt,
		Username:     user.Username,
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair. Order is
// strict: validate, then mint, then rotate. A failed validation never mints.
func (s *AuthService) Refresh(ctx context.Context, req model.RefreshRequest) (model.AuthResponse, error) {
	if err := s.refresh.Validate(ctx, req.RefreshToken, req.Username); err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return model.AuthResponse{}, err
		}
		return model.AuthResponse{}, model.ErrInvalidRefresh
	}

	// Role is re-read from the directory, as at login; the new tokens carry
	// the live role even if the old pair predates a role change.
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return model.AuthResponse{}, model.ErrInvalidRefresh
	}

	accessToken, expiresAt, err := s.mintAccessToken(user.Username, user.Role)
	if err != nil {
		slog.Error("refresh failed to mint access token", "username", user.Username, "error", err)
		return model.AuthResponse{}, model.ErrInvalidRefresh
	}

	rotated, err := s.refresh.Rotate(ctx, req.RefreshToken, user.Username, user.Role)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return model.AuthResponse{}, err
		}
		return model.AuthResponse{}, model.ErrInvalidRefresh
	}

	return model.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: rotated.Token,
		ExpiresAt:    expiresAt,
		Username:     user.Username,
	}, nil
}

// Logout revokes the refresh token. Revoking an already-gone token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	slog.Info("logout: refresh token revoked")
	return nil
}

// Register creates a disabled account and dispatches an activation mail
// carrying a verification token. The account stays unusable until activated.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) error {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return model.ErrUserAlreadyExists
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return model.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return err
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Enabled:      false,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	token, err := s.issueVerificationToken(ctx, user.Username)
	if err != nil {
		return err
	}

	s.dispatch(mailer.Notification{
		Subject:   "Please activate your account",
		Recipient: user.Email,
		Username:  user.Username,
		Body: "Thank you for signing up. Please click the link below to activate your account: " +
			s.links.AccountVerification + token,
	})

	slog.Info("user registered", "username", user.Username)
	return nil
}

// VerifyAccount consumes an activation token and enables the referenced
// user. Enablement and token deletion commit together, so a consumed token
// can never be replayed against an already-applied mutation.
func (s *AuthService) VerifyAccount(ctx context.Context, token string) error {
	rec, err := s.consumeVerificationToken(ctx, token)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.users.SetEnabledTx(ctx, tx, rec.Username, true); err != nil {
			return err
		}
		return s.verifications.DeleteTx(ctx, tx, rec.Token)
	})
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.ErrInvalidToken
		}
		return err
	}

	slog.Info("account activated", "username", rec.Username)
	return nil
}

// ForgotPassword issues a reset token and mails a reset link. Unknown email
// addresses are reported to the caller; the HTTP layer decides how much of
// that to reveal.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.issueVerificationToken(ctx, user.Username)
	if err != nil {
		return err
	}

	s.dispatch(mailer.Notification{
		Subject:   "Password Reset Request",
		Recipient: user.Email,
		Username:  user.Username,
		Body: "You have requested to reset your password. Please click the link below to reset it: " +
			s.links.PasswordReset + token,
	})

	slog.Info("password reset requested", "username", user.Username)
	return nil
}

// ResetPassword consumes a reset token and replaces the user's password
// hash. The hash update and token deletion commit together.
func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	rec, err := s.consumeVerificationToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.users.UpdatePasswordTx(ctx, tx, rec.Username, hash); err != nil {
			return err
		}
		return s.verifications.DeleteTx(ctx, tx, rec.Token)
	})
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.ErrInvalidToken
		}
		return err
	}

	slog.Info("password reset", "username", rec.Username)
	return nil
}

func (s *AuthService) mintAccessToken(username string, role string) (string, time.Time, error) {
	token, err := s.signer.Mint(username, role, s.accessTTL, false)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().UTC().Add(s.accessTTL), nil
}

func (s *AuthService) issueVerificationToken(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	rec := model.VerificationToken{
		Token:     token,
		Username:  username,
		ExpiresAt: s.now().UTC().Add(VerificationTokenTTL),
	}

	if err := s.verifications.Store(ctx, rec); err != nil {
		return "", err
	}
	return token, nil
}

// consumeVerificationToken resolves the token and checks expiry. The record
// stays in place; deletion happens in the caller's transaction alongside the
// account mutation. Expired tokens are rejected here even before any sweep.
func (s *AuthService) consumeVerificationToken(ctx context.Context, token string) (model.VerificationToken, error) {
	rec, err := s.verifications.Find(ctx, token)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.VerificationToken{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.VerificationToken{}, err
	}

	if rec.ExpiresAt.Before(s.now()) {
		return model.VerificationToken{}, model.ErrInvalidToken
	}

	return rec, nil
}

// dispatch sends a notification without blocking the caller. Failures are
// logged and not retried here; the committed token and user state stand
// regardless of delivery.
func (s *AuthService) dispatch(n mailer.Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.mail.Send(ctx, n); err != nil {
			slog.Error("mail dispatch failed", "recipient", n.Recipient, "subject", n.Subject, "error", err)
		}
	}()
}
