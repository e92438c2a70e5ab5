package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/robct07/SweetHome/internal/auth"
	"github.com/robct07/SweetHome/internal/store"
)

const minPasswordLength = 8

type AuthHandler struct {
	accounts      *store.AccountStore
	sessions      *store.SessionStore
	relationships *store.RelationshipStore
	logger        *slog.Logger
}

func NewAuthHandler(
	as *store.AccountStore,
	ss *store.SessionStore,
	rs *store.RelationshipStore,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:      as,
		sessions:      ss,
		relationships: rs,
		logger:        logger,
	}
}

// Register creates an account and logs it in, returning the account and a
// fresh session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}
	if !emailRegexp.MatchString(strings.TrimSpace(req.Email)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a valid email is required"})
		return
	}
	if len(req.Password) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	account, err := h.accounts.Create(req.Username, req.Email, req.Password)
	if errors.Is(err, store.ErrEmailTaken) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}
	if err != nil {
		h.logger.Error("create account", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		return
	}

	sess, err := h.sessions.Create(account.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"account": account,
		"session": sess,
	})
}

// Login verifies credentials and returns a fresh session token. Unknown
// emails and wrong passwords get the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	account, err := h.accounts.Verify(req.Email, req.Password)
	if errors.Is(err, store.ErrBadCredentials) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}
	if err != nil {
		h.logger.Error("verify credentials", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to log in"})
		return
	}

	sess, err := h.sessions.Create(account.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"session": sess,
	})
}

// Logout deletes the current session server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.sessions.Delete(ac.SessionID); err != nil {
		h.logger.Error("delete session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to log out"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated account and its relationship, if any.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	account, err := h.accounts.GetByID(ac.AccountID)
	if err != nil || account == nil {
		h.logger.Error("get account", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load account"})
		return
	}

	rel, err := h.relationships.GetActiveForAccount(ac.AccountID)
	if err != nil {
		h.logger.Error("get relationship", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load relationship"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":      account,
		"relationship": rel,
	})
}
