package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/robct07/SweetHome/internal/auth"
	"github.com/robct07/SweetHome/internal/model"
	"github.com/robct07/SweetHome/internal/realtime"
	"github.com/robct07/SweetHome/internal/store"
)

type MemoryHandler struct {
	memories      *store.MemoryStore
	relationships *store.RelationshipStore
	hub           *realtime.Hub
	logger        *slog.Logger
}

func NewMemoryHandler(
	ms *store.MemoryStore,
	rs *store.RelationshipStore,
	hub *realtime.Hub,
	logger *slog.Logger,
) *MemoryHandler {
	return &MemoryHandler{
		memories:      ms,
		relationships: rs,
		hub:           hub,
		logger:        logger,
	}
}

// activeRelationship loads the caller's relationship or writes the
// appropriate error response and returns nil.
func (h *MemoryHandler) activeRelationship(w http.ResponseWriter, r *http.Request) (*model.Relationship, int64) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil, 0
	}

	rel, err := h.relationships.GetActiveForAccount(ac.AccountID)
	if err != nil {
		h.logger.Error("get relationship", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load relationship"})
		return nil, 0
	}
	if rel == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no relationship to share with"})
		return nil, 0
	}
	return rel, ac.AccountID
}

// Create shares a new memory with the caller's partner.
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	rel, accountID := h.activeRelationship(w, r)
	if rel == nil {
		return
	}

	var req struct {
		Kind string `json:"kind"`
		Mood string `json:"mood"`
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if !model.ValidMemoryKind(req.Kind) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be mood, note, or media"})
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}
	if req.Kind == model.MemoryMood && strings.TrimSpace(req.Mood) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mood is required for mood memories"})
		return
	}

	mem, err := h.memories.Create(rel.ID, accountID, req.Kind, strings.TrimSpace(req.Mood), req.Body)
	if err != nil {
		h.logger.Error("create memory", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create memory"})
		return
	}

	h.hub.Send(realtime.NewEvent("memory", "created", mem.ID, map[string]any{"kind": mem.Kind}), rel.Partner(accountID))

	writeJSON(w, http.StatusCreated, mem)
}

// List returns the relationship's memories, newest first.
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	rel, _ := h.activeRelationship(w, r)
	if rel == nil {
		return
	}

	memories, err := h.memories.ListByRelationship(rel.ID)
	if err != nil {
		h.logger.Error("list memories", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list memories"})
		return
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	writeJSON(w, http.StatusOK, memories)
}

// Delete removes a memory. Only its author may delete it.
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rel, accountID := h.activeRelationship(w, r)
	if rel == nil {
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	mem, err := h.memories.GetByID(id)
	if err != nil {
		h.logger.Error("get memory", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get memory"})
		return
	}
	if mem == nil || mem.RelationshipID != rel.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "memory not found"})
		return
	}
	if mem.AuthorAccountID != accountID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the author can delete a memory"})
		return
	}

	if err := h.memories.Delete(id); err != nil {
		h.logger.Error("delete memory", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete memory"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
