package model

import "time"

const (
	RoleUser      = "USER"
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the identity attached to a request after the bearer token has
// been verified. The role comes from the token claim, not the live user row.
type Principal struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// CanMutate is the single authorization predicate shared by every downstream
// handler: admins may touch anything, everyone else only their own resources.
func (p Principal) CanMutate(owner string) bool {
	return p.Role == RoleAdmin || p.Username == owner
}
