package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/database"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	srv     *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := New(Options{
		Store:     store.NewSQLStore(db, store.DialectSQLite),
		PushStore: store.NewPushStore(db, store.DialectSQLite),
		Tokens:    auth.NewTokenIssuer("server-test-secret-123", time.Hour),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testServer{t: t, handler: srv.Router(), srv: srv}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (ts *testServer) register(username, password string) session {
	ts.t.Helper()
	rec := ts.do("POST", "/api/register", "", map[string]string{
		"username": username,
		"name":     username,
		"password": password,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[session](ts.t, rec)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/user", "/api/chores", "/api/rewards", "/api/notifications"} {
		rec := ts.do("GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRegisterAndSignIn(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register("alice", "wonderland")
	assert.True(t, alice.User.IsAdmin, "first user should be admin")
	bob := ts.register("bob", "builder")
	assert.False(t, bob.User.IsAdmin)

	rec := ts.do("POST", "/api/register", "", map[string]string{"username": "bob", "password": "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("POST", "/api/session", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do("POST", "/api/session", "", map[string]string{"username": "alice", "password": "wonderland"})
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[session](t, rec)

	rec = ts.do("GET", "/api/user", s.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.User](t, rec)
	assert.Equal(t, "alice", me.Username)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestChoreApprovalFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice", "wonderland")
	bob := ts.register("bob", "builder")

	rec := ts.do("POST", "/api/chores", alice.Token, map[string]any{
		"name":        "Wash dishes",
		"points":      50,
		"assigned_to": bob.User.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[model.Chore](t, rec)
	assert.Equal(t, model.ChoreStatusPending, c.Status)

	path := "/api/chores/" + itoa(c.ID)

	rec = ts.do("POST", path+"/complete", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The admin is told a chore awaits review.
	rec = ts.do("GET", "/api/notifications/unread", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]model.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifTypeChoreCompleted, notes[0].Type)

	rec = ts.do("GET", "/api/chores/pending-approval", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do("POST", path+"/approve", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("GET", "/api/chores/pending-approval", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Chore](t, rec), 1)

	rec = ts.do("POST", path+"/approve", alice.Token, map[string]string{"comment": "sparkling"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ChoreStatusApproved, decode[model.Chore](t, rec).Status)

	rec = ts.do("POST", path+"/approve", alice.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do("GET", "/api/user", bob.Token, nil)
	assert.Equal(t, 50, decode[model.User](t, rec).Points)

	rec = ts.do("GET", "/api/transactions", bob.Token, nil)
	txns := decode[[]model.Transaction](t, rec)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TransactionEarn, txns[0].Type)
	assert.Equal(t, "Approved: Wash dishes", txns[0].Description)

	// Bob cannot read Alice's ledger; Alice can read Bob's.
	rec = ts.do("GET", "/api/transactions?user_id="+itoa(alice.User.ID), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do("GET", "/api/transactions?user_id="+itoa(bob.User.ID), alice.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("GET", "/api/notifications", bob.Token, nil)
	notes = decode[[]model.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifTypeChoreApproved, notes[0].Type)

	rec = ts.do("PUT", "/api/notifications/mark-all-read", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do("GET", "/api/notifications/unread", bob.Token, nil)
	assert.Empty(t, decode[[]model.Notification](t, rec))

	rec = ts.do("GET", "/api/leaderboard", bob.Token, nil)
	board := decode[[]model.PointBalance](t, rec)
	require.NotEmpty(t, board)
	assert.Equal(t, bob.User.ID, board[0].UserID)
	assert.Equal(t, 50, board[0].Balance)
}

func TestRejectRequiresComment(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice", "wonderland")

	rec := ts.do("POST", "/api/chores", alice.Token, map[string]any{"name": "Vacuum", "points": 10})
	c := decode[model.Chore](t, rec)
	path := "/api/chores/" + itoa(c.ID)
	require.Equal(t, http.StatusOK, ts.do("POST", path+"/complete", alice.Token, nil).Code)

	rec = ts.do("POST", path+"/reject", alice.Token, map[string]string{"comment": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("POST", path+"/reject", alice.Token, map[string]string{"comment": "missed a spot"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Chore](t, rec)
	assert.Equal(t, model.ChoreStatusRejected, got.Status)
	assert.Equal(t, "missed a spot", got.Comment)
}

func TestRewardClaim(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice", "wonderland")
	bob := ts.register("bob", "builder")

	rec := ts.do("POST", "/api/rewards", bob.Token, map[string]any{"name": "Movie Night", "cost": 200})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("POST", "/api/rewards", alice.Token, map[string]any{"name": "Movie Night", "cost": 200})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	r := decode[model.Reward](t, rec)
	assert.True(t, r.IsAvailable)

	rec = ts.do("POST", "/api/rewards/"+itoa(r.ID)+"/claim", bob.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient points")

	rec = ts.do("POST", "/api/rewards/999/claim", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do("GET", "/api/rewards/"+itoa(r.ID), bob.Token, nil)
	assert.True(t, decode[model.Reward](t, rec).IsAvailable)
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice", "wonderland")
	bob := ts.register("bob", "builder")

	rec := ts.do("POST", "/api/users", bob.Token, map[string]string{"username": "carol"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("POST", "/api/users", alice.Token, map[string]string{"username": "carol", "name": "Carol", "avatar_emoji": "🦊"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	carol := decode[model.User](t, rec)
	assert.False(t, carol.IsAdmin)

	rec = ts.do("GET", "/api/users", bob.Token, nil)
	assert.Len(t, decode[[]model.User](t, rec), 3)

	rec = ts.do("PUT", "/api/users/"+itoa(carol.ID), bob.Token, map[string]string{"name": "Caz"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("PUT", "/api/users/"+itoa(bob.User.ID), bob.Token, map[string]any{"name": "Robert", "is_admin": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("PUT", "/api/users/"+itoa(bob.User.ID), bob.Token, map[string]string{"name": "Robert"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Robert", decode[model.User](t, rec).Name)

	rec = ts.do("PUT", "/api/users/"+itoa(alice.User.ID), alice.Token, map[string]bool{"is_admin": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarEndpointsWithoutStorage(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice", "wonderland")

	rec := ts.do("POST", "/api/users/"+itoa(alice.User.ID)+"/avatar-upload", alice.Token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = ts.do("GET", "/objects/avatars/1/x", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPushSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice", "wonderland")
	bob := ts.register("bob", "builder")

	rec := ts.do("GET", "/api/push/vapid-key", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sub := map[string]string{
		"endpoint":    "https://push.example.com/abc",
		"p256dh":      "key",
		"auth":        "secret",
		"device_name": "phone",
	}
	rec = ts.do("POST", "/api/push/subscribe", alice.Token, sub)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do("GET", "/api/push/subscriptions", alice.Token, nil)
	assert.Len(t, decode[[]model.PushSubscription](t, rec), 1)

	rec = ts.do("POST", "/api/push/unsubscribe", bob.Token, map[string]string{"endpoint": sub["endpoint"]})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("POST", "/api/push/unsubscribe", alice.Token, map[string]string{"endpoint": sub["endpoint"]})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do("GET", "/api/push/subscriptions", alice.Token, nil)
	assert.Empty(t, decode[[]model.PushSubscription](t, rec))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
