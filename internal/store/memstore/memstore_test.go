package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
)

func TestAtomicRestoresSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, &model.User{Username: "kid"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Atomic(ctx, func(tx store.Store) error {
		ok, err := tx.CreditPoints(ctx, u.ID, 50)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.CreateTransaction(ctx, &model.Transaction{UserID: u.ID, Type: model.TransactionEarn, Amount: 50})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Points)

	txns, err := s.ListTransactions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestAtomicCommitsAndNests(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := s.CreateUser(ctx, &model.User{Username: "kid"})

	err := s.Atomic(ctx, func(tx store.Store) error {
		return tx.Atomic(ctx, func(inner store.Store) error {
			_, err := inner.CreditPoints(ctx, u.ID, 10)
			return err
		})
	})
	require.NoError(t, err)

	got, _ := s.GetUser(ctx, u.ID)
	assert.Equal(t, 10, got.Points)
}

func TestDebitGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	s.CreditPoints(ctx, u.ID, 150)

	ok, err := s.DebitPoints(ctx, u.ID, 200)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DebitPoints(ctx, u.ID, 150)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := s.GetUser(ctx, u.ID)
	assert.Equal(t, 0, got.Points)
}

func TestUpdateRewardKeepsClaimedUnavailable(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	r, _ := s.CreateReward(ctx, &model.Reward{Name: "Sticker", Cost: 10, IsAvailable: true})
	ok, err := s.ConsumeReward(ctx, r.ID, u.ID)
	require.NoError(t, err)
	require.True(t, ok)

	yes := true
	got, err := s.UpdateReward(ctx, r.ID, model.RewardUpdate{IsAvailable: &yes})
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
}

func TestSetChoreStateGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	c, _ := s.CreateChore(ctx, &model.Chore{Name: "Wash dishes", Points: 50})
	assert.Equal(t, model.ChoreStatusPending, c.Status)

	next := *c
	next.Status = model.ChoreStatusCompleted
	ok, err := s.SetChoreState(ctx, &next, model.ChoreStatusPending)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetChoreState(ctx, &next, model.ChoreStatusPending)
	require.NoError(t, err)
	assert.False(t, ok, "stale guard must not apply")
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	s.CreditPoints(ctx, u.ID, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := s.DebitPoints(ctx, u.ID, 30)
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	got, _ := s.GetUser(ctx, u.ID)
	assert.Equal(t, 10, got.Points)
}

func TestListOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := s.CreateUser(ctx, &model.User{Username: "kid", Name: "Kid"})

	s.CreateNotification(ctx, &model.Notification{UserID: u.ID, Title: "first"})
	second, _ := s.CreateNotification(ctx, &model.Notification{UserID: u.ID, Title: "second"})

	all, err := s.ListNotifications(ctx, u.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Title)

	require.NoError(t, s.MarkNotificationRead(ctx, second.ID))
	unread, _ := s.ListNotifications(ctx, u.ID, true)
	require.Len(t, unread, 1)
	assert.Equal(t, "first", unread[0].Title)

	s.CreateReward(ctx, &model.Reward{Name: "Big", Cost: 100, IsAvailable: true})
	s.CreateReward(ctx, &model.Reward{Name: "Gone", Cost: 1, IsAvailable: false})
	s.CreateReward(ctx, &model.Reward{Name: "Small", Cost: 10, IsAvailable: true})
	rewards, _ := s.ListRewards(ctx)
	require.Len(t, rewards, 3)
	assert.Equal(t, []string{"Small", "Big", "Gone"}, []string{rewards[0].Name, rewards[1].Name, rewards[2].Name})
}

func TestDeleteChoreDetachesLedger(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := s.CreateUser(ctx, &model.User{Username: "kid"})
	c, _ := s.CreateChore(ctx, &model.Chore{Name: "Mop", Points: 10})
	s.CreateTransaction(ctx, &model.Transaction{UserID: u.ID, Type: model.TransactionEarn, Amount: 10, ChoreID: &c.ID})

	ok, err := s.DeleteChore(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	txns, _ := s.ListTransactions(ctx, u.ID)
	require.Len(t, txns, 1)
	assert.Nil(t, txns[0].ChoreID)
}
