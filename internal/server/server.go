package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/chore"
	"github.com/dukerupert/choreboard/internal/handler"
	"github.com/dukerupert/choreboard/internal/middleware"
	"github.com/dukerupert/choreboard/internal/notify"
	"github.com/dukerupert/choreboard/internal/push"
	"github.com/dukerupert/choreboard/internal/reward"
	"github.com/dukerupert/choreboard/internal/store"
	ws "github.com/dukerupert/choreboard/internal/websocket"
)

const (
	loginLimit    = 10
	loginWindow   = time.Minute
	pushQueueSize = 128
	cleanupEvery  = 5 * time.Minute
)

// PushStore is the subscription storage shared by the push handler and the
// delivery queue.
type PushStore interface {
	handler.PushSubscriptions
	push.Subscriptions
}

// Options carries the collaborators built in main. Objects and Push may be
// nil when object storage or VAPID keys are not configured.
type Options struct {
	Store         store.Store
	PushStore     PushStore
	Objects       handler.ObjectStore
	Push          *push.Service
	Tokens        *auth.TokenIssuer
	DefaultUserID int64
	Logger        *slog.Logger
}

type Server struct {
	store         store.Store
	tokens        *auth.TokenIssuer
	hub           *ws.Hub
	dispatcher    *notify.Dispatcher
	pushQueue     *push.Queue
	userH         *handler.UserHandler
	avatarH       *handler.AvatarHandler
	choreH        *handler.ChoreHandler
	rewardH       *handler.RewardHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	hub := ws.NewHub(logger)

	dispatcher := notify.NewDispatcher(opts.Store, logger.With("component", "notify"), hub)

	var queue *push.Queue
	publicKey := ""
	if opts.Push != nil {
		queue = push.NewQueue(opts.Push, opts.PushStore, pushQueueSize, logger.With("component", "push"))
		dispatcher.AddSink(queue)
		publicKey = opts.Push.VAPIDPublicKey()
	}

	choreEngine := chore.NewEngine(opts.Store, dispatcher, opts.DefaultUserID, logger.With("component", "chore"))
	rewardEngine := reward.NewEngine(opts.Store, logger.With("component", "reward"))

	return &Server{
		store:         opts.Store,
		tokens:        opts.Tokens,
		hub:           hub,
		dispatcher:    dispatcher,
		pushQueue:     queue,
		userH:         handler.NewUserHandler(opts.Store, opts.Tokens, hub, logger.With("component", "user")),
		avatarH:       handler.NewAvatarHandler(opts.Store, opts.Objects, hub, logger.With("component", "avatar")),
		choreH:        handler.NewChoreHandler(choreEngine, hub, logger.With("component", "chore_handler")),
		rewardH:       handler.NewRewardHandler(rewardEngine, hub, logger.With("component", "reward_handler")),
		notificationH: handler.NewNotificationHandler(dispatcher, logger.With("component", "notification")),
		pushH:         handler.NewPushHandler(opts.PushStore, publicKey, logger.With("component", "push_handler")),
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// Start launches the background workers. They stop when ctx is cancelled
// or Stop is called.
func (s *Server) Start(ctx context.Context) {
	if s.pushQueue != nil {
		s.pushQueue.Start(ctx)
	}
	s.rateLimiter.StartCleanup(ctx, cleanupEvery)
}

// Stop drains the push queue.
func (s *Server) Stop() {
	if s.pushQueue != nil {
		s.pushQueue.Stop()
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.userH.Register))
	outerMux.HandleFunc("POST /api/session", s.rateLimitedHandler(s.userH.CreateSession))
	outerMux.Handle("GET /objects/{path...}", middleware.OptionalAuth(s.tokens, s.store)(http.HandlerFunc(s.avatarH.ServeObject)))

	// Everything else requires a bearer token
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.store)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "websocket_clients": s.hub.ClientCount()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, loginLimit, loginWindow)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Users
	mux.HandleFunc("GET /api/user", s.userH.Me)
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.Handle("POST /api/users", middleware.RequireAdmin(http.HandlerFunc(s.userH.Create)))
	mux.HandleFunc("PUT /api/users/{id}", s.userH.Update)
	mux.HandleFunc("POST /api/users/{id}/avatar-upload", s.avatarH.UploadURL)
	mux.HandleFunc("PUT /api/users/{id}/avatar", s.avatarH.SetAvatar)
	mux.HandleFunc("GET /api/transactions", s.userH.Transactions)
	mux.HandleFunc("GET /api/leaderboard", s.userH.Leaderboard)

	// Chores
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores/pending-approval", s.choreH.PendingApproval)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("POST /api/chores/{id}/approve", s.choreH.Approve)
	mux.HandleFunc("POST /api/chores/{id}/reject", s.choreH.Reject)

	// Rewards
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/claim", s.rewardH.Claim)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/notifications/unread", s.notificationH.Unread)
	mux.HandleFunc("PUT /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("PUT /api/notifications/mark-all-read", s.notificationH.MarkAllRead)

	// Push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)

	// Realtime
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}

var (
	_ chore.Notifier = (*notify.Dispatcher)(nil)
	_ notify.Sink    = (*ws.Hub)(nil)
	_ notify.Sink    = (*push.Queue)(nil)
)
