package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreboard/internal/chore"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/websocket"
)

type ChoreHandler struct {
	engine *chore.Engine
	hub    Broadcaster
	logger *slog.Logger
}

func NewChoreHandler(engine *chore.Engine, hub Broadcaster, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{engine: engine, hub: hub, logger: logger}
}

type createChoreRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Points        int    `json:"points"`
	EstimatedTime string `json:"estimated_time"`
	AssignedTo    *int64 `json:"assigned_to"`
}

// nullableID tells an explicit null apart from an absent field.
type nullableID struct {
	Set   bool
	Value *int64
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type updateChoreRequest struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	Points        *int       `json:"points"`
	EstimatedTime *string    `json:"estimated_time"`
	AssignedTo    nullableID `json:"assigned_to"`
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(chores))
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.engine.Create(r.Context(), actor(r), chore.CreateParams{
		Name:          req.Name,
		Description:   req.Description,
		Points:        req.Points,
		EstimatedTime: req.EstimatedTime,
		AssignedTo:    req.AssignedTo,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("chore", "created", c.ID, nil))
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd := model.ChoreUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Points:        req.Points,
		EstimatedTime: req.EstimatedTime,
	}
	if req.AssignedTo.Set {
		upd.AssignedTo = req.AssignedTo.Value
		upd.Unassign = req.AssignedTo.Value == nil
	}

	c, err := h.engine.Update(r.Context(), actor(r), id, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("chore", "updated", c.ID, nil))
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("chore", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/chores/{id}/complete
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.engine.Complete(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("chore", "completed", c.ID, map[string]any{
		"completed_by": *c.CompletedBy,
	}))
	writeJSON(w, http.StatusOK, c)
}

// Approve handles POST /api/chores/{id}/approve
func (h *ChoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	c, err := h.engine.Approve(r.Context(), actor(r), id, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("chore", "approved", c.ID, map[string]any{
		"points": c.Points,
	}))
	writeJSON(w, http.StatusOK, c)
}

// Reject handles POST /api/chores/{id}/reject
func (h *ChoreHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	c, err := h.engine.Reject(r.Context(), actor(r), id, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("chore", "rejected", c.ID, nil))
	writeJSON(w, http.StatusOK, c)
}

// PendingApproval handles GET /api/chores/pending-approval
func (h *ChoreHandler) PendingApproval(w http.ResponseWriter, r *http.Request) {
	chores, err := h.engine.ListPendingApproval(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(chores))
}
