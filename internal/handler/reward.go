package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/reward"
	"github.com/dukerupert/choreboard/internal/websocket"
)

type RewardHandler struct {
	engine *reward.Engine
	hub    Broadcaster
	logger *slog.Logger
}

func NewRewardHandler(engine *reward.Engine, hub Broadcaster, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{engine: engine, hub: hub, logger: logger}
}

type createRewardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	Icon        string `json:"icon"`
	IsAvailable *bool  `json:"is_available"`
}

type updateRewardRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Cost        *int    `json:"cost"`
	Icon        *string `json:"icon"`
	IsAvailable *bool   `json:"is_available"`
}

type claimRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rewards))
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rw, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	rw, err := h.engine.Create(r.Context(), actor(r), reward.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		Icon:        req.Icon,
		IsAvailable: available,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("reward", "created", rw.ID, nil))
	writeJSON(w, http.StatusCreated, rw)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rw, err := h.engine.Update(r.Context(), actor(r), id, model.RewardUpdate{
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		Icon:        req.Icon,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("reward", "updated", rw.ID, nil))
	writeJSON(w, http.StatusOK, rw)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("reward", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Claim handles POST /api/rewards/{id}/claim
func (h *RewardHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req claimRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	res, err := h.engine.Claim(r.Context(), actor(r), id, req.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("reward", "claimed", id, map[string]any{
		"user_id":    res.Transaction.UserID,
		"new_points": res.NewPoints,
	}))
	writeJSON(w, http.StatusOK, res)
}
