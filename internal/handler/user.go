package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/choreboard/internal/apperr"
	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
	"github.com/dukerupert/choreboard/internal/websocket"
)

const maxUsernameLength = 50

// UserHandler covers registration, sign-in, family members and the ledger
// views.
type UserHandler struct {
	store  store.Store
	tokens *auth.TokenIssuer
	hub    Broadcaster
	logger *slog.Logger
}

func NewUserHandler(s store.Store, tokens *auth.TokenIssuer, hub Broadcaster, logger *slog.Logger) *UserHandler {
	return &UserHandler{store: s, tokens: tokens, hub: hub, logger: logger}
}

type registerRequest struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	AvatarEmoji string `json:"avatar_emoji"`
}

type sessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	AvatarType  *string `json:"avatar_type"`
	AvatarEmoji *string `json:"avatar_emoji"`
	Password    *string `json:"password"`
	IsAdmin     *bool   `json:"is_admin"`
}

// Register handles POST /api/register. The first account becomes an admin.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "password is required")
		return
	}

	var created *model.User
	err := h.store.Atomic(r.Context(), func(tx store.Store) error {
		n, err := tx.CountUsers(r.Context())
		if err != nil {
			return err
		}
		created, err = createUser(r, tx, req, n == 0)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", created.ID, "admin", created.IsAdmin)
	broadcast(h.hub, websocket.NewMessage("user", "created", created.ID, nil))
	h.issue(w, http.StatusCreated, created)
}

// CreateSession handles POST /api/session
func (h *UserHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeMessage(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	h.issue(w, http.StatusOK, u)
}

func (h *UserHandler) issue(w http.ResponseWriter, status int, u *model.User) {
	token, expires, err := h.tokens.Issue(u.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, ExpiresAt: expires, User: u})
}

// Me handles GET /api/user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(users))
}

// Create handles POST /api/users: an admin adds a family member. Members
// added without a password cannot sign in until one is set.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(actor(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var created *model.User
	err := h.store.Atomic(r.Context(), func(tx store.Store) error {
		var err error
		created, err = createUser(r, tx, req, false)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("user", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a := actor(r)
	if err := auth.RequireOwnerOrAdmin(a, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd, err := buildUserUpdate(a, id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.store.UpdateUser(r.Context(), id, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("user", "updated", u.ID, nil))
	writeJSON(w, http.StatusOK, u)
}

// Transactions handles GET /api/transactions. Without ?user_id= the caller's
// own ledger is returned.
func (h *UserHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	userID := a.UserID
	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeMessage(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = id
	}
	if err := auth.RequireOwnerOrAdmin(a, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	txns, err := h.store.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txns))
}

// Leaderboard handles GET /api/leaderboard
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	balances, err := h.store.PointBalances(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(balances))
}

func createUser(r *http.Request, s store.Store, req registerRequest, admin bool) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if len(username) > maxUsernameLength {
		return nil, apperr.Validation("username must be at most %d characters", maxUsernameLength)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = username
	}

	existing, err := s.GetUserByUsername(r.Context(), username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("username already exists")
	}

	var hash string
	if req.Password != "" {
		hash, err = auth.HashPassword(req.Password)
		if err != nil {
			return nil, passwordError(err)
		}
	}

	return s.CreateUser(r.Context(), &model.User{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		IsAdmin:      admin,
		AvatarType:   model.AvatarTypeEmoji,
		AvatarEmoji:  req.AvatarEmoji,
	})
}

func buildUserUpdate(a auth.Actor, id int64, req updateUserRequest) (model.UserUpdate, error) {
	upd := model.UserUpdate{AvatarEmoji: req.AvatarEmoji}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return upd, apperr.Validation("name cannot be empty")
		}
		upd.Name = &name
	}
	if req.AvatarType != nil {
		switch *req.AvatarType {
		case model.AvatarTypeEmoji, model.AvatarTypeImage:
			upd.AvatarType = req.AvatarType
		default:
			return upd, apperr.Validation("avatar_type must be %q or %q", model.AvatarTypeEmoji, model.AvatarTypeImage)
		}
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return upd, passwordError(err)
		}
		upd.PasswordHash = &hash
	}
	if req.IsAdmin != nil {
		if err := auth.RequireAdmin(a); err != nil {
			return upd, err
		}
		if a.UserID == id && !*req.IsAdmin {
			return upd, apperr.Validation("admins cannot remove their own admin role")
		}
		upd.IsAdmin = req.IsAdmin
	}
	return upd, nil
}

// passwordError turns the hashing policy error into a validation error; bcrypt
// failures stay internal.
func passwordError(err error) error {
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return apperr.Validation("%s", err.Error())
	}
	return err
}
