package signer

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"forest-auth/internal/model"
)

const issuer = "forest"

// Claims is the claim set carried by every credential this service mints.
// Refresh distinguishes refresh credentials from access credentials.
type Claims struct {
	Role    string `json:"role,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints and verifies signed credentials. Verify checks signature and
// structure only; it never rejects an expired-but-well-formed token because
// expiry policy differs between access and refresh credentials. Callers read
// ExpiresAt and decide.
type Signer interface {
	Mint(subject string, role string, ttl time.Duration, refresh bool) (string, error)
	Verify(tokenString string) (*Claims, error)
}

// RSASigner signs with RS256 using an externally provisioned key pair.
type RSASigner struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	parser     *jwt.Parser
}

func NewRSASigner(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) *RSASigner {
	return &RSASigner{
		privateKey: privateKey,
		publicKey:  publicKey,
		// Temporal claims are validated by the caller, not here.
		parser: jwt.NewParser(
			jwt.WithoutClaimsValidation(),
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		),
	}
}

func (s *RSASigner) Mint(subject string, role string, ttl time.Duration, refresh bool) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Role:    role,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
}

func (s *RSASigner) Verify(tokenString string) (*Claims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	})
	if err != nil {
		// Malformed input, signature mismatch, and unexpected algorithm all
		// look the same to the caller.
		return nil, model.ErrCredentialInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, model.ErrCredentialInvalid
	}

	return claims, nil
}

// Expired reports whether the claim set's expiry has passed. A token without
// an exp claim is treated as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.Time.Before(now)
}
