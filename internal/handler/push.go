package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreboard/internal/model"
)

// PushSubscriptions is the subset of store.PushStore the handler uses.
type PushSubscriptions interface {
	Subscribe(ctx context.Context, userID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error)
	GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListByUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	Unsubscribe(ctx context.Context, endpoint string) (bool, error)
}

type PushHandler struct {
	subs      PushSubscriptions
	publicKey string
	logger    *slog.Logger
}

// NewPushHandler builds a PushHandler. An empty publicKey means push is not
// configured; subscriptions are still stored.
func NewPushHandler(subs PushSubscriptions, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, publicKey: publicKey, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeMessage(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeMessage(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") {
		writeMessage(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	sub, err := h.subs.Subscribe(r.Context(), actor(r).UserID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles POST /api/push/unsubscribe. Removing an unknown
// endpoint succeeds.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeMessage(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	sub, err := h.subs.GetByEndpoint(r.Context(), req.Endpoint)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if sub != nil {
		a := actor(r)
		if sub.UserID != a.UserID && !a.Admin {
			writeMessage(w, http.StatusForbidden, "subscription belongs to another user")
			return
		}
		if _, err := h.subs.Unsubscribe(r.Context(), req.Endpoint); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(subs))
}
