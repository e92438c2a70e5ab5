package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robct07/SweetHome/internal/database"
	"github.com/robct07/SweetHome/internal/model"
)

func setupRelationshipTestDB(t *testing.T) (*RelationshipStore, *InviteStore, *AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRelationshipStore(db), NewInviteStore(db, 7*24*time.Hour), NewAccountStore(db)
}

func TestEstablish(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")

	inv, err := is.Create(alice)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	rel, err := rs.Establish(inv.Code, bob, model.KindLovedOne)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if rel.Kind != model.KindLovedOne {
		t.Errorf("kind = %q, want %q", rel.Kind, model.KindLovedOne)
	}
	if rel.AccountA >= rel.AccountB {
		t.Errorf("accounts not in canonical order: %d, %d", rel.AccountA, rel.AccountB)
	}
	if rel.Partner(alice) != bob || rel.Partner(bob) != alice {
		t.Error("relationship must pair the owner with the redeemer")
	}

	redeemed, err := is.GetByCode(inv.Code)
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if redeemed.Status != model.InviteRedeemed {
		t.Errorf("invite status = %q, want %q", redeemed.Status, model.InviteRedeemed)
	}
	if redeemed.RedeemedBy == nil || *redeemed.RedeemedBy != bob {
		t.Errorf("redeemed_by = %v, want %d", redeemed.RedeemedBy, bob)
	}
	if redeemed.RedeemedAt == nil {
		t.Error("expected redeemed_at to be set")
	}
}

func TestEstablishUnknownCode(t *testing.T) {
	rs, _, as := setupRelationshipTestDB(t)
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")

	_, err := rs.Establish("NOSUCHCD", bob, model.KindFamily)
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestEstablishSelfRedeem(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")

	inv, _ := is.Create(alice)
	_, err := rs.Establish(inv.Code, alice, model.KindFamily)
	if !errors.Is(err, ErrSelfRedeem) {
		t.Fatalf("expected ErrSelfRedeem, got %v", err)
	}

	// The code survives the failed attempt.
	after, _ := is.GetByCode(inv.Code)
	if after.Status != model.InviteActive {
		t.Errorf("invite status = %q, want still active", after.Status)
	}
}

func TestEstablishExpiredCode(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")

	inv, _ := is.Create(alice)
	backdateInvite(t, is, inv.Code)

	_, err := rs.Establish(inv.Code, bob, model.KindFamily)
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}

	// The failed redemption applied the expired transition.
	after, _ := is.GetByCode(inv.Code)
	if after.Status != model.InviteExpired {
		t.Errorf("invite status = %q, want %q", after.Status, model.InviteExpired)
	}
}

func TestEstablishRedeemedCode(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")
	carol := mustCreateAccount(t, as, "carol", "carol@example.com")

	inv, _ := is.Create(alice)
	if _, err := rs.Establish(inv.Code, bob, model.KindFamily); err != nil {
		t.Fatalf("establish: %v", err)
	}

	_, err := rs.Establish(inv.Code, carol, model.KindFamily)
	if !errors.Is(err, ErrCodeRedeemed) {
		t.Fatalf("expected ErrCodeRedeemed, got %v", err)
	}
}

func TestEstablishRevokedCode(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")

	inv, _ := is.Create(alice)
	if _, err := is.Revoke(inv.Code, alice); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err := rs.Establish(inv.Code, bob, model.KindFamily)
	if !errors.Is(err, ErrCodeRevoked) {
		t.Fatalf("expected ErrCodeRevoked, got %v", err)
	}
}

func TestEstablishRedeemerAlreadyLinked(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")
	carol := mustCreateAccount(t, as, "carol", "carol@example.com")

	first, _ := is.Create(alice)
	if _, err := rs.Establish(first.Code, bob, model.KindFamily); err != nil {
		t.Fatalf("establish: %v", err)
	}

	second, _ := is.Create(carol)
	_, err := rs.Establish(second.Code, bob, model.KindFriends)
	if !errors.Is(err, ErrAccountLinked) {
		t.Fatalf("expected ErrAccountLinked, got %v", err)
	}

	// The rollback restores carol's code so someone else can use it.
	after, _ := is.GetByCode(second.Code)
	if after.Status != model.InviteActive {
		t.Errorf("invite status = %q, want restored to active", after.Status)
	}
	if after.RedeemedBy != nil {
		t.Error("rolled-back invite must not carry redemption fields")
	}
}

func TestGetActiveForAccount(t *testing.T) {
	rs, is, as := setupRelationshipTestDB(t)
	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	bob := mustCreateAccount(t, as, "bob", "bob@example.com")

	if rel, err := rs.GetActiveForAccount(alice); err != nil || rel != nil {
		t.Fatalf("expected no relationship yet, got %v, %v", rel, err)
	}

	inv, _ := is.Create(alice)
	created, err := rs.Establish(inv.Code, bob, model.KindFamily)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	// Both members see the same relationship.
	for _, id := range []int64{alice, bob} {
		rel, err := rs.GetActiveForAccount(id)
		if err != nil {
			t.Fatalf("get for account %d: %v", id, err)
		}
		if rel == nil || rel.ID != created.ID {
			t.Fatalf("account %d: expected relationship %d, got %v", id, created.ID, rel)
		}
	}
}

func TestGetByIDNotFound(t *testing.T) {
	rs, _, _ := setupRelationshipTestDB(t)

	rel, err := rs.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if rel != nil {
		t.Error("expected nil for nonexistent relationship")
	}
}

// TestEstablishConcurrent runs many redeemers against one code. Exactly
// one must win; the rest see the code as already redeemed. A file-backed
// database is used because each pooled connection to :memory: gets its
// own database.
func TestEstablishConcurrent(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rs := NewRelationshipStore(db)
	is := NewInviteStore(db, 7*24*time.Hour)
	as := NewAccountStore(db)

	alice := mustCreateAccount(t, as, "alice", "alice@example.com")
	inv, err := is.Create(alice)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	const redeemers = 50
	ids := make([]int64, redeemers)
	for i := range ids {
		ids[i] = mustCreateAccount(t, as, fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@example.com", i))
	}

	results := make([]error, redeemers)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = rs.Establish(inv.Code, ids[i], model.KindFriends)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for i, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrCodeRedeemed):
			lost++
		default:
			t.Errorf("redeemer %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
	if lost != redeemers-1 {
		t.Errorf("losers = %d, want %d", lost, redeemers-1)
	}
}
