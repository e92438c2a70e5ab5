package model

import "time"

// Account is a registered user. The email is stored normalized
// (lowercased, trimmed) and is unique. The password hash never leaves
// the server.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
