package store

import (
	"database/sql"
	"fmt"

	"github.com/robct07/SweetHome/internal/model"
)

type MemoryStore struct {
	db *sql.DB
}

func NewMemoryStore(db *sql.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

func scanMemory(scanner interface{ Scan(...any) error }) (*model.Memory, error) {
	var m model.Memory
	err := scanner.Scan(&m.ID, &m.RelationshipID, &m.AuthorAccountID, &m.Kind, &m.Mood, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memoryCols = `id, relationship_id, author_account_id, kind, mood, body, created_at`

func (s *MemoryStore) Create(relationshipID, authorID int64, kind, mood, body string) (*model.Memory, error) {
	result, err := s.db.Exec(
		`INSERT INTO memories (relationship_id, author_account_id, kind, mood, body) VALUES (?, ?, ?, ?, ?)`,
		relationshipID, authorID, kind, mood, body,
	)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemoryStore) GetByID(id int64) (*model.Memory, error) {
	row := s.db.QueryRow(`SELECT `+memoryCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// ListByRelationship returns the relationship's memories, newest first.
func (s *MemoryStore) ListByRelationship(relationshipID int64) ([]model.Memory, error) {
	rows, err := s.db.Query(
		`SELECT `+memoryCols+` FROM memories WHERE relationship_id = ? ORDER BY created_at DESC, id DESC`,
		relationshipID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

func (s *MemoryStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}
