package store

import (
	"errors"
	"strings"
)

// Conflict and validation failures that handlers map to HTTP statuses.
// Plain getters keep the (nil, nil) convention for not-found; these cover
// the paths where the caller has to know why a write was refused.
var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrBadCredentials   = errors.New("invalid email or password")
	ErrActiveCodeExists = errors.New("account already has an active invite code")
	ErrAccountLinked    = errors.New("account already has a relationship")
	ErrCodeNotFound     = errors.New("invite code not found")
	ErrCodeRedeemed     = errors.New("invite code already redeemed")
	ErrCodeExpired      = errors.New("invite code expired")
	ErrCodeRevoked      = errors.New("invite code revoked")
	ErrSelfRedeem       = errors.New("cannot redeem your own invite code")
	ErrNotOwner         = errors.New("invite code belongs to another account")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The modernc driver exposes these only through the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
