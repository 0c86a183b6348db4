package auth

import "time"

// User is the credential-side view of an account: just enough to verify a
// login and stamp it. Profile management lives in the users package.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
