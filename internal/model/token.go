package model

import "time"

// RefreshToken is the persisted record backing a login session. The token
// string itself is a signed credential carrying the subject and a refresh
// marker; ExpiresAt is the storage-level expiry the reaper enforces.
type RefreshToken struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationToken is a single-use opaque credential proving control of an
// email address. The same record serves account activation and password
// reset; only what the orchestrator does on consumption differs.
type VerificationToken struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}
