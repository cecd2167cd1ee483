package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/choreboard/internal/apperr"
	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/objectstore"
	"github.com/dukerupert/choreboard/internal/store"
	"github.com/dukerupert/choreboard/internal/websocket"
)

// ObjectStore is the avatar storage the handler needs.
type ObjectStore interface {
	UploadURL(ctx context.Context, ownerID int64) (*objectstore.Upload, error)
	Download(ctx context.Context, objectPath string) (*objectstore.Object, error)
	SetACLPolicy(ctx context.Context, objectPath string, p objectstore.ACLPolicy) error
	ACLPolicy(ctx context.Context, objectPath string) (*objectstore.ACLPolicy, error)
	NormalizePath(raw string) (string, error)
}

type AvatarHandler struct {
	store   store.Store
	objects ObjectStore
	hub     Broadcaster
	logger  *slog.Logger
}

// NewAvatarHandler builds an AvatarHandler. objects may be nil when no
// bucket is configured; the endpoints then answer 503.
func NewAvatarHandler(s store.Store, objects ObjectStore, hub Broadcaster, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{store: s, objects: objects, hub: hub, logger: logger}
}

type setAvatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

func (h *AvatarHandler) available(w http.ResponseWriter) bool {
	if h.objects == nil {
		writeMessage(w, http.StatusServiceUnavailable, "object storage is not configured")
		return false
	}
	return true
}

// target checks access to the user in the path and that the user exists.
func (h *AvatarHandler) target(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	if err := auth.RequireOwnerOrAdmin(actor(r), id); err != nil {
		writeError(w, h.logger, err)
		return 0, false
	}
	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return 0, false
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return 0, false
	}
	return id, true
}

// UploadURL handles POST /api/users/{id}/avatar-upload
func (h *AvatarHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.target(w, r)
	if !ok {
		return
	}

	up, err := h.objects.UploadURL(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

// SetAvatar handles PUT /api/users/{id}/avatar. The URL must point at an
// object uploaded for this user; it is made public and set as the avatar.
func (h *AvatarHandler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req setAvatarRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AvatarURL == "" {
		writeMessage(w, http.StatusBadRequest, "avatar_url is required")
		return
	}

	objectPath, err := h.objects.NormalizePath(req.AvatarURL)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid avatar URL format")
		return
	}
	owner, err := objectstore.OwnerOf(objectPath)
	if err != nil || owner != id {
		writeMessage(w, http.StatusForbidden, "avatar URL does not belong to this user")
		return
	}

	err = h.objects.SetACLPolicy(r.Context(), objectPath, objectstore.ACLPolicy{
		Owner:      id,
		Visibility: objectstore.VisibilityPublic,
	})
	if errors.Is(err, objectstore.ErrNotFound) {
		writeMessage(w, http.StatusBadRequest, "uploaded image not found")
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	avatarType := model.AvatarTypeImage
	u, err := h.store.UpdateUser(r.Context(), id, model.UserUpdate{
		AvatarType: &avatarType,
		AvatarURL:  &objectPath,
	})
	if err == nil && u == nil {
		err = apperr.NotFound("user not found")
	}
	if err != nil {
		// No avatar points at the object, so it goes back to private.
		if rerr := h.objects.SetACLPolicy(r.Context(), objectPath, objectstore.ACLPolicy{
			Owner:      id,
			Visibility: objectstore.VisibilityPrivate,
		}); rerr != nil {
			h.logger.Error("restore private avatar policy", "path", objectPath, "error", rerr)
		}
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("user", "updated", id, nil))
	writeJSON(w, http.StatusOK, u)
}

// ServeObject handles GET /objects/{path...}. Public objects need no token.
func (h *AvatarHandler) ServeObject(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	objectPath := objectstore.PathPrefix + r.PathValue("path")

	policy, err := h.objects.ACLPolicy(r.Context(), objectPath)
	if err != nil {
		h.objectError(w, err)
		return
	}
	a := actor(r)
	if !policy.CanRead(a.UserID, a.Admin) {
		writeMessage(w, http.StatusForbidden, "access denied to this object")
		return
	}

	obj, err := h.objects.Download(r.Context(), objectPath)
	if err != nil {
		h.objectError(w, err)
		return
	}
	defer obj.Body.Close()

	cache := "private, max-age=3600"
	if policy.Visibility == objectstore.VisibilityPublic {
		cache = "public, max-age=3600"
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", cache)
	if obj.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	if obj.ETag != "" {
		w.Header().Set("ETag", obj.ETag)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("stream object", "path", objectPath, "error", err)
	}
}

func (h *AvatarHandler) objectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "object not found")
	case errors.Is(err, objectstore.ErrInvalidPath):
		writeMessage(w, http.StatusBadRequest, "invalid object path")
	default:
		writeError(w, h.logger, err)
	}
}
