package model

import "time"

// Memory kinds, matching the client's share types.
const (
	MemoryMood  = "mood"
	MemoryNote  = "note"
	MemoryMedia = "media"
)

// ValidMemoryKind reports whether k is one of the supported memory kinds.
func ValidMemoryKind(k string) bool {
	return k == MemoryMood || k == MemoryNote || k == MemoryMedia
}

// Memory is a shared entry visible to both members of a relationship.
type Memory struct {
	ID              int64     `json:"id"`
	RelationshipID  int64     `json:"relationship_id"`
	AuthorAccountID int64     `json:"author_account_id"`
	Kind            string    `json:"kind"`
	Mood            string    `json:"mood,omitempty"`
	Body            string    `json:"body"`
	CreatedAt       time.Time `json:"created_at"`
}
