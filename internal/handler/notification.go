package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreboard/internal/notify"
)

type NotificationHandler struct {
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewNotificationHandler(d *notify.Dispatcher, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{dispatcher: d, logger: logger}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := h.dispatcher.ListAll(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(ns))
}

// Unread handles GET /api/notifications/unread
func (h *NotificationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	ns, err := h.dispatcher.ListUnread(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(ns))
}

// MarkRead handles PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.dispatcher.MarkRead(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles PUT /api/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.dispatcher.MarkAllRead(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}
