package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/choreboard/internal/apperr"
	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store/memstore"
)

type recordingSink struct {
	got []model.Notification
	err error
}

func (r *recordingSink) Deliver(_ context.Context, n model.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func setup(t *testing.T) (*Dispatcher, *memstore.Store, *recordingSink) {
	t.Helper()
	s := memstore.New()
	sink := &recordingSink{}
	return NewDispatcher(s, slog.Default(), sink), s, sink
}

func TestNotifyPersistsAndDelivers(t *testing.T) {
	d, s, sink := setup(t)
	ctx := context.Background()
	kid, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	choreID := int64(7)

	n, err := d.Notify(ctx, kid.ID, "Chore Approved! 🎉", "well done", model.NotifTypeChoreApproved, &choreID)
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.Equal(t, kid.ID, n.UserID)
	require.NotNil(t, n.ChoreID)
	assert.Equal(t, choreID, *n.ChoreID)

	require.Len(t, sink.got, 1)
	assert.Equal(t, n.ID, sink.got[0].ID)
}

func TestNotifySinkFailureIsSwallowed(t *testing.T) {
	d, s, sink := setup(t)
	sink.err = errors.New("push service down")
	ctx := context.Background()
	kid, _ := s.CreateUser(ctx, &model.User{Username: "kid"})

	_, err := d.Notify(ctx, kid.ID, "t", "m", model.NotifTypeChoreRejected, nil)
	require.NoError(t, err)

	all, _ := d.ListAll(ctx, kid.ID)
	assert.Len(t, all, 1)
}

func TestNotifyAdminsFansOut(t *testing.T) {
	d, s, sink := setup(t)
	ctx := context.Background()
	mom, _ := s.CreateUser(ctx, &model.User{Username: "mom", IsAdmin: true})
	dad, _ := s.CreateUser(ctx, &model.User{Username: "dad", IsAdmin: true})
	kid, _ := s.CreateUser(ctx, &model.User{Username: "kid"})

	sent, err := d.NotifyAdmins(ctx, "Chore Completed - Pending Approval", "msg", model.NotifTypeChoreCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, sink.got, 2)

	for _, id := range []int64{mom.ID, dad.ID} {
		unread, _ := d.ListUnread(ctx, id)
		assert.Len(t, unread, 1)
	}
	kidNotifs, _ := d.ListAll(ctx, kid.ID)
	assert.Empty(t, kidNotifs)
}

func TestMarkRead(t *testing.T) {
	d, s, _ := setup(t)
	ctx := context.Background()
	kid, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	other, _ := s.CreateUser(ctx, &model.User{Username: "other"})
	mom, _ := s.CreateUser(ctx, &model.User{Username: "mom", IsAdmin: true})
	n, _ := d.Notify(ctx, kid.ID, "t", "m", model.NotifTypeChoreApproved, nil)

	_, err := d.MarkRead(ctx, auth.Actor{UserID: other.ID}, n.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	got, err := d.MarkRead(ctx, auth.Actor{UserID: kid.ID}, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	// idempotent, and admins may mark anyone's
	got, err = d.MarkRead(ctx, auth.ActorFor(mom), n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	_, err = d.MarkRead(ctx, auth.Actor{UserID: kid.ID}, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	d, s, _ := setup(t)
	ctx := context.Background()
	kid, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	d.Notify(ctx, kid.ID, "a", "", model.NotifTypeChoreApproved, nil)
	d.Notify(ctx, kid.ID, "b", "", model.NotifTypeChoreApproved, nil)

	n, err := d.MarkAllRead(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, _ := d.ListUnread(ctx, kid.ID)
	assert.Empty(t, unread)
	all, _ := d.ListAll(ctx, kid.ID)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Title)
}
