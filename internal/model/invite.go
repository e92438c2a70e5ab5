package model

import "time"

// Invite code lifecycle. A code leaves "active" exactly once and never
// returns: redeemed by another account, expired past its window, or
// revoked by its owner.
const (
	InviteActive   = "active"
	InviteRedeemed = "redeemed"
	InviteExpired  = "expired"
	InviteRevoked  = "revoked"
)

type InviteCode struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	OwnerAccountID int64      `json:"owner_account_id"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RedeemedBy     *int64     `json:"redeemed_by_account_id,omitempty"`
	RedeemedAt     *time.Time `json:"redeemed_at,omitempty"`
}
