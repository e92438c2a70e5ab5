package store

import (
	"database/sql"
	"fmt"

	"github.com/robct07/SweetHome/internal/model"
)

type RelationshipStore struct {
	db *sql.DB
}

func NewRelationshipStore(db *sql.DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

func scanRelationship(scanner interface{ Scan(...any) error }) (*model.Relationship, error) {
	var r model.Relationship
	err := scanner.Scan(&r.ID, &r.AccountA, &r.AccountB, &r.Kind, &r.EstablishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const relationshipCols = `id, account_a, account_b, kind, established_at`

// Establish redeems an invite code and links its owner with the redeemer
// in a single transaction. The conditional update on the code row decides
// the winner under concurrent redemption: exactly one caller flips the
// code to redeemed, everyone else diagnoses why their update matched
// nothing. If the link cannot be created the transaction rolls back and
// the code stays active.
func (s *RelationshipStore) Establish(code string, redeemerID int64, kind string) (*model.Relationship, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE invite_codes
		 SET status = 'redeemed', redeemed_by_account_id = ?, redeemed_at = datetime('now')
		 WHERE code = ? AND status = 'active' AND expires_at > datetime('now') AND owner_account_id != ?`,
		redeemerID, code, redeemerID,
	)
	if err != nil {
		return nil, fmt.Errorf("redeem invite: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return nil, s.diagnoseRedeemFailure(tx, code, redeemerID)
	}

	var ownerID int64
	err = tx.QueryRow(`SELECT owner_account_id FROM invite_codes WHERE code = ?`, code).Scan(&ownerID)
	if err != nil {
		return nil, fmt.Errorf("get invite owner: %w", err)
	}

	var linked bool
	err = tx.QueryRow(
		`SELECT EXISTS (
		    SELECT 1 FROM relationships
		    WHERE account_a IN (?, ?) OR account_b IN (?, ?)
		 )`,
		ownerID, redeemerID, ownerID, redeemerID,
	).Scan(&linked)
	if err != nil {
		return nil, fmt.Errorf("check existing relationships: %w", err)
	}
	if linked {
		// Rolls back the redemption with the transaction.
		return nil, ErrAccountLinked
	}

	a, b := ownerID, redeemerID
	if b < a {
		a, b = b, a
	}
	insert, err := tx.Exec(
		`INSERT INTO relationships (account_a, account_b, kind) VALUES (?, ?, ?)`,
		a, b, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := tx.QueryRow(`SELECT `+relationshipCols+` FROM relationships WHERE id = ?`, id)
	rel, err := scanRelationship(row)
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return rel, nil
}

// diagnoseRedeemFailure inspects a code whose conditional redeem matched
// nothing and returns the sentinel describing why. An active code found
// past its expiry is transitioned to expired on the way out.
func (s *RelationshipStore) diagnoseRedeemFailure(tx *sql.Tx, code string, redeemerID int64) error {
	row := tx.QueryRow(`SELECT `+inviteCols+` FROM invite_codes WHERE code = ?`, code)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return ErrCodeNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect invite: %w", err)
	}

	if inv.Status == model.InviteActive {
		var overdue bool
		err := tx.QueryRow(`SELECT expires_at <= datetime('now') FROM invite_codes WHERE code = ?`, code).Scan(&overdue)
		if err != nil {
			return fmt.Errorf("check invite expiry: %w", err)
		}
		if overdue {
			// Lazy expiry: the observation itself applies the transition.
			if _, err := tx.Exec(`UPDATE invite_codes SET status = 'expired' WHERE code = ?`, code); err != nil {
				return fmt.Errorf("expire invite: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit expiry: %w", err)
			}
			return ErrCodeExpired
		}
		if inv.OwnerAccountID == redeemerID {
			return ErrSelfRedeem
		}
		return fmt.Errorf("invite %q active but not redeemable", code)
	}
	return statusErr(inv.Status)
}

// GetActiveForAccount returns the account's relationship, or nil when the
// account is unlinked.
func (s *RelationshipStore) GetActiveForAccount(accountID int64) (*model.Relationship, error) {
	row := s.db.QueryRow(
		`SELECT `+relationshipCols+` FROM relationships WHERE account_a = ? OR account_b = ?`,
		accountID, accountID,
	)
	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship for account: %w", err)
	}
	return rel, nil
}

func (s *RelationshipStore) GetByID(id int64) (*model.Relationship, error) {
	row := s.db.QueryRow(`SELECT `+relationshipCols+` FROM relationships WHERE id = ?`, id)
	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}
