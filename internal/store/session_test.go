package store

import (
	"testing"

	"github.com/robct07/SweetHome/internal/database"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionStore(db), NewAccountStore(db)
}

func TestSessionCreate(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, err := as.Create("alice", "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	sess, err := ss.Create(a.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected non-empty token")
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.AccountID != a.ID {
		t.Errorf("account_id = %d, want %d", sess.AccountID, a.ID)
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		t.Error("expected expiry in the future")
	}
}

func TestSessionTokensUnique(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, _ := as.Create("alice", "alice@example.com", "password1")

	s1, _ := ss.Create(a.ID)
	s2, _ := ss.Create(a.ID)
	if s1.Token == s2.Token {
		t.Error("expected distinct tokens for distinct sessions")
	}
}

func TestSessionGetByToken(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, _ := as.Create("alice", "alice@example.com", "password1")
	created, _ := ss.Create(a.ID)

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session")
	}
	if sess.ID != created.ID {
		t.Errorf("session ID = %d, want %d", sess.ID, created.ID)
	}
}

func TestSessionGetByTokenUnknown(t *testing.T) {
	ss, _ := setupSessionTestDB(t)

	sess, err := ss.GetByToken("no-such-token")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionGetByTokenExpired(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, _ := as.Create("alice", "alice@example.com", "password1")
	created, _ := ss.Create(a.ID)

	if _, err := ss.db.Exec(
		`UPDATE sessions SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, created.ID,
	); err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}
}

func TestSessionDelete(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, _ := as.Create("alice", "alice@example.com", "password1")
	created, _ := ss.Create(a.ID)

	if err := ss.Delete(created.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if sess != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, _ := as.Create("alice", "alice@example.com", "password1")
	s1, _ := ss.Create(a.ID)
	s2, _ := ss.Create(a.ID)

	if _, err := ss.db.Exec(
		`UPDATE sessions SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, s1.ID,
	); err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	count, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if count != 1 {
		t.Errorf("deleted = %d, want 1", count)
	}

	if sess, _ := ss.GetByToken(s2.Token); sess == nil {
		t.Error("live session should survive the sweep")
	}
}

func TestSessionDeleteByAccountID(t *testing.T) {
	ss, as := setupSessionTestDB(t)

	a, _ := as.Create("alice", "alice@example.com", "password1")
	b, _ := as.Create("bob", "bob@example.com", "password2")
	sa, _ := ss.Create(a.ID)
	sb, _ := ss.Create(b.ID)

	if err := ss.DeleteByAccountID(a.ID); err != nil {
		t.Fatalf("delete by account: %v", err)
	}

	if sess, _ := ss.GetByToken(sa.Token); sess != nil {
		t.Error("expected alice's session gone")
	}
	if sess, _ := ss.GetByToken(sb.Token); sess == nil {
		t.Error("expected bob's session to survive")
	}
}
