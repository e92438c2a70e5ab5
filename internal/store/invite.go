package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/robct07/SweetHome/internal/model"
)

// Code alphabet omits glyphs that read ambiguously on a phone screen
// (0/O, 1/I/L). 30^8 combinations keeps accidental collisions negligible;
// the unique index plus regeneration covers the rest.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
	codeLength   = 8

	maxCodeRetries = 5
)

type InviteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewInviteStore creates an InviteStore issuing codes valid for ttl.
func NewInviteStore(db *sql.DB, ttl time.Duration) *InviteStore {
	return &InviteStore{db: db, ttl: ttl}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.InviteCode, error) {
	var inv model.InviteCode
	var redeemedBy sql.NullInt64
	var redeemedAt sql.NullTime

	err := scanner.Scan(
		&inv.ID, &inv.Code, &inv.OwnerAccountID, &inv.Status,
		&inv.CreatedAt, &inv.ExpiresAt, &redeemedBy, &redeemedAt,
	)
	if err != nil {
		return nil, err
	}

	if redeemedBy.Valid {
		inv.RedeemedBy = &redeemedBy.Int64
	}
	if redeemedAt.Valid {
		inv.RedeemedAt = &redeemedAt.Time
	}
	return &inv, nil
}

const inviteCols = `id, code, owner_account_id, status, created_at, expires_at, redeemed_by_account_id, redeemed_at`

// generateCode returns a random 8-character code from the invite alphabet.
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Create issues a new invite code for the owner. It fails with
// ErrAccountLinked when the owner already has a relationship, and with
// ErrActiveCodeExists when an unexpired active code is already out.
// A generated code colliding with an existing one is regenerated.
func (s *InviteStore) Create(ownerID int64) (*model.InviteCode, error) {
	if err := s.expireOverdueForOwner(ownerID); err != nil {
		return nil, err
	}

	var linked bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM relationships WHERE account_a = ? OR account_b = ?)`,
		ownerID, ownerID,
	).Scan(&linked)
	if err != nil {
		return nil, fmt.Errorf("check relationship: %w", err)
	}
	if linked {
		return nil, ErrAccountLinked
	}

	var active int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM invite_codes WHERE owner_account_id = ? AND status = 'active'`,
		ownerID,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("count active codes: %w", err)
	}
	if active > 0 {
		return nil, ErrActiveCodeExists
	}

	expiresAt := time.Now().UTC().Add(s.ttl)

	var id int64
	backoff := retry.WithMaxRetries(maxCodeRetries, retry.NewConstant(time.Millisecond))
	err = retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		code, err := generateCode()
		if err != nil {
			return err
		}
		result, err := s.db.Exec(
			`INSERT INTO invite_codes (code, owner_account_id, expires_at) VALUES (?, ?, ?)`,
			code, ownerID, expiresAt,
		)
		if isUniqueViolation(err) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return fmt.Errorf("insert invite code: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("issue invite code: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invite_codes WHERE id = ?`, id)
	return scanInvite(row)
}

// GetByCode returns the invite for the given code, or nil if unknown.
// An active code past its expiry is marked expired before being returned.
func (s *InviteStore) GetByCode(code string) (*model.InviteCode, error) {
	if err := s.expireIfOverdue(code); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invite_codes WHERE code = ?`, code)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by code: %w", err)
	}
	return inv, nil
}

// GetActiveByOwner returns the owner's current active code, or nil.
func (s *InviteStore) GetActiveByOwner(ownerID int64) (*model.InviteCode, error) {
	if err := s.expireOverdueForOwner(ownerID); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		`SELECT `+inviteCols+` FROM invite_codes WHERE owner_account_id = ? AND status = 'active'`,
		ownerID,
	)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active invite by owner: %w", err)
	}
	return inv, nil
}

// Revoke marks the owner's active code as revoked. It fails with
// ErrCodeNotFound for unknown codes, ErrNotOwner when the code belongs to
// someone else, and a status error when the code is no longer active.
func (s *InviteStore) Revoke(code string, ownerID int64) (*model.InviteCode, error) {
	if err := s.expireIfOverdue(code); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE invite_codes SET status = 'revoked' WHERE code = ? AND owner_account_id = ? AND status = 'active'`,
		code, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("revoke invite: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		inv, err := s.GetByCode(code)
		if err != nil {
			return nil, err
		}
		switch {
		case inv == nil:
			return nil, ErrCodeNotFound
		case inv.OwnerAccountID != ownerID:
			return nil, ErrNotOwner
		default:
			return nil, statusErr(inv.Status)
		}
	}
	return s.GetByCode(code)
}

// ExpireOverdue marks every active code past its expiry as expired and
// returns the number transitioned. Used by the background sweep; reads
// apply the same transition lazily.
func (s *InviteStore) ExpireOverdue() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invite_codes SET status = 'expired' WHERE status = 'active' AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, fmt.Errorf("expire overdue invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *InviteStore) expireIfOverdue(code string) error {
	_, err := s.db.Exec(
		`UPDATE invite_codes SET status = 'expired' WHERE code = ? AND status = 'active' AND expires_at <= datetime('now')`,
		code,
	)
	if err != nil {
		return fmt.Errorf("expire invite: %w", err)
	}
	return nil
}

func (s *InviteStore) expireOverdueForOwner(ownerID int64) error {
	_, err := s.db.Exec(
		`UPDATE invite_codes SET status = 'expired' WHERE owner_account_id = ? AND status = 'active' AND expires_at <= datetime('now')`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("expire owner invites: %w", err)
	}
	return nil
}

// statusErr maps a terminal invite status to its sentinel error.
func statusErr(status string) error {
	switch status {
	case model.InviteRedeemed:
		return ErrCodeRedeemed
	case model.InviteExpired:
		return ErrCodeExpired
	case model.InviteRevoked:
		return ErrCodeRevoked
	}
	return fmt.Errorf("unexpected invite status %q", status)
}
