package store

import (
	"context"

	"github.com/dukerupert/choreboard/internal/model"
)

// Store is the persistence boundary for the engines. Getters return nil, nil
// when the record does not exist. Methods returning (bool, error) are
// conditional writes: false means the guard did not match and nothing changed.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListAdmins(ctx context.Context) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
	// CreditPoints adds amount to the user's balance.
	CreditPoints(ctx context.Context, userID int64, amount int) (bool, error)
	// DebitPoints subtracts amount only if the balance covers it.
	DebitPoints(ctx context.Context, userID int64, amount int) (bool, error)

	CreateChore(ctx context.Context, c *model.Chore) (*model.Chore, error)
	GetChore(ctx context.Context, id int64) (*model.Chore, error)
	ListChores(ctx context.Context) ([]model.Chore, error)
	ListChoresByStatus(ctx context.Context, status string) ([]model.Chore, error)
	UpdateChore(ctx context.Context, id int64, upd model.ChoreUpdate) (*model.Chore, error)
	DeleteChore(ctx context.Context, id int64) (bool, error)
	// SetChoreState writes c's status, completion and review fields if the
	// stored status still equals from.
	SetChoreState(ctx context.Context, c *model.Chore, from string) (bool, error)

	CreateReward(ctx context.Context, r *model.Reward) (*model.Reward, error)
	GetReward(ctx context.Context, id int64) (*model.Reward, error)
	ListRewards(ctx context.Context) ([]model.Reward, error)
	UpdateReward(ctx context.Context, id int64, upd model.RewardUpdate) (*model.Reward, error)
	DeleteReward(ctx context.Context, id int64) (bool, error)
	// ConsumeReward marks an available reward claimed by userID.
	ConsumeReward(ctx context.Context, id, userID int64) (bool, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error)
	// PointBalances sums the ledger per user, highest balance first.
	PointBalances(ctx context.Context) ([]model.PointBalance, error)

	CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error)
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)

	// Atomic runs fn against a Store whose writes commit together or not at
	// all. Calls nested inside fn join the outer unit.
	Atomic(ctx context.Context, fn func(Store) error) error
}
