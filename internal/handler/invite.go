package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/robct07/SweetHome/internal/auth"
	"github.com/robct07/SweetHome/internal/model"
	"github.com/robct07/SweetHome/internal/realtime"
	"github.com/robct07/SweetHome/internal/store"
)

type InviteHandler struct {
	invites       *store.InviteStore
	relationships *store.RelationshipStore
	hub           *realtime.Hub
	logger        *slog.Logger
}

func NewInviteHandler(
	is *store.InviteStore,
	rs *store.RelationshipStore,
	hub *realtime.Hub,
	logger *slog.Logger,
) *InviteHandler {
	return &InviteHandler{
		invites:       is,
		relationships: rs,
		hub:           hub,
		logger:        logger,
	}
}

// Create issues a new invite code for the authenticated account.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	inv, err := h.invites.Create(ac.AccountID)
	switch {
	case errors.Is(err, store.ErrAccountLinked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "account already has a relationship"})
		return
	case errors.Is(err, store.ErrActiveCodeExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an active invite code already exists"})
		return
	case err != nil:
		h.logger.Error("create invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create invite"})
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// Get looks up an invite code. Lazy expiry is applied by the store before
// the status is reported.
func (h *InviteHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))

	inv, err := h.invites.GetByCode(code)
	if err != nil {
		h.logger.Error("get invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up invite"})
		return
	}
	if inv == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invite code not found"})
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Revoke marks the caller's active code as revoked.
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))

	inv, err := h.invites.Revoke(code, ac.AccountID)
	switch {
	case errors.Is(err, store.ErrCodeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invite code not found"})
		return
	case errors.Is(err, store.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invite code belongs to another account"})
		return
	case errors.Is(err, store.ErrCodeExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": "invite code expired"})
		return
	case errors.Is(err, store.ErrCodeRedeemed), errors.Is(err, store.ErrCodeRevoked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "invite code is no longer active"})
		return
	case err != nil:
		h.logger.Error("revoke invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to revoke invite"})
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// Redeem consumes an invite code and links the caller with its owner.
// Redemption and linking happen in one transaction; exactly one of any
// number of concurrent redeemers wins.
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))

	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if !model.ValidKind(req.Kind) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be family, friends, or loved_one"})
		return
	}

	rel, err := h.relationships.Establish(code, ac.AccountID, req.Kind)
	switch {
	case errors.Is(err, store.ErrCodeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invite code not found"})
		return
	case errors.Is(err, store.ErrCodeExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": "invite code expired"})
		return
	case errors.Is(err, store.ErrCodeRedeemed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "invite code already redeemed"})
		return
	case errors.Is(err, store.ErrCodeRevoked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "invite code was revoked"})
		return
	case errors.Is(err, store.ErrSelfRedeem):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot redeem your own invite code"})
		return
	case errors.Is(err, store.ErrAccountLinked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "account already has a relationship"})
		return
	case err != nil:
		h.logger.Error("redeem invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to redeem invite"})
		return
	}

	owner := rel.Partner(ac.AccountID)
	h.hub.Send(realtime.NewEvent("invite", "redeemed", rel.ID, map[string]any{"code": code}), owner)
	h.hub.Send(realtime.NewEvent("relationship", "established", rel.ID, map[string]any{"kind": rel.Kind}), owner, ac.AccountID)

	writeJSON(w, http.StatusOK, rel)
}

// Relationship returns the caller's active relationship, or 404 when the
// account is unlinked.
func (h *InviteHandler) Relationship(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	rel, err := h.relationships.GetActiveForAccount(ac.AccountID)
	if err != nil {
		h.logger.Error("get relationship", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load relationship"})
		return
	}
	if rel == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no relationship"})
		return
	}
	writeJSON(w, http.StatusOK, rel)
}
