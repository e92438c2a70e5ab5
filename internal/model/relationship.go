package model

import "time"

// Relationship kinds, matching the client's relation picker.
const (
	KindFamily   = "family"
	KindFriends  = "friends"
	KindLovedOne = "loved_one"
)

// ValidKind reports whether k is one of the supported relationship kinds.
func ValidKind(k string) bool {
	return k == KindFamily || k == KindFriends || k == KindLovedOne
}

// Relationship is an exclusive pairing between two accounts. AccountA is
// always the smaller ID so the pair is stored in one canonical order.
type Relationship struct {
	ID            int64     `json:"id"`
	AccountA      int64     `json:"account_a"`
	AccountB      int64     `json:"account_b"`
	Kind          string    `json:"kind"`
	EstablishedAt time.Time `json:"established_at"`
}

// Partner returns the other member of the pair, or 0 if accountID is not
// a member.
func (r *Relationship) Partner(accountID int64) int64 {
	switch accountID {
	case r.AccountA:
		return r.AccountB
	case r.AccountB:
		return r.AccountA
	}
	return 0
}
