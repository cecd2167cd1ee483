// Package memstore is an in-memory store.Store for tests and ephemeral runs.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
)

type state struct {
	users         map[int64]model.User
	chores        map[int64]model.Chore
	rewards       map[int64]model.Reward
	transactions  map[int64]model.Transaction
	notifications map[int64]model.Notification
	nextID        int64
}

func (st *state) clone() state {
	return state{
		users:         maps.Clone(st.users),
		chores:        maps.Clone(st.chores),
		rewards:       maps.Clone(st.rewards),
		transactions:  maps.Clone(st.transactions),
		notifications: maps.Clone(st.notifications),
		nextID:        st.nextID,
	}
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// Store guards all maps with one mutex. Inside Atomic the lock is already
// held, so the view handed to fn skips locking.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			users:         map[int64]model.User{},
			chores:        map[int64]model.Chore{},
			rewards:       map[int64]model.Reward{},
			transactions:  map[int64]model.Transaction{},
			notifications: map[int64]model.Notification{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Atomic restores the snapshot taken before fn if fn fails.
func (s *Store) Atomic(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: s.st, inTx: true, now: s.now}); err != nil {
		*s.st = snapshot
		return err
	}
	return nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	defer s.lock()()
	now := s.now()
	nu := *u
	nu.ID = s.st.id()
	nu.Points = 0
	if nu.AvatarType == "" {
		nu.AvatarType = model.AvatarTypeEmoji
	}
	nu.CreatedAt, nu.UpdatedAt = now, now
	s.st.users[nu.ID] = nu
	return &nu, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	defer s.lock()()
	u, ok := s.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	defer s.lock()()
	for _, u := range s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	defer s.lock()()
	return sortedByID(s.st.users, func(model.User) bool { return true }), nil
}

func (s *Store) ListAdmins(_ context.Context) ([]model.User, error) {
	defer s.lock()()
	return sortedByID(s.st.users, func(u model.User) bool { return u.IsAdmin }), nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	defer s.lock()()
	return len(s.st.users), nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	defer s.lock()()
	u, ok := s.st.users[id]
	if !ok {
		return nil, nil
	}
	setIf(&u.Name, upd.Name)
	setIf(&u.AvatarType, upd.AvatarType)
	setIf(&u.AvatarEmoji, upd.AvatarEmoji)
	setIf(&u.AvatarURL, upd.AvatarURL)
	setIf(&u.PasswordHash, upd.PasswordHash)
	setIf(&u.IsAdmin, upd.IsAdmin)
	u.UpdatedAt = s.now()
	s.st.users[id] = u
	return &u, nil
}

func (s *Store) CreditPoints(_ context.Context, userID int64, amount int) (bool, error) {
	defer s.lock()()
	u, ok := s.st.users[userID]
	if !ok {
		return false, nil
	}
	u.Points += amount
	u.UpdatedAt = s.now()
	s.st.users[userID] = u
	return true, nil
}

func (s *Store) DebitPoints(_ context.Context, userID int64, amount int) (bool, error) {
	defer s.lock()()
	u, ok := s.st.users[userID]
	if !ok || u.Points < amount {
		return false, nil
	}
	u.Points -= amount
	u.UpdatedAt = s.now()
	s.st.users[userID] = u
	return true, nil
}

// --- chores ---

func (s *Store) CreateChore(_ context.Context, c *model.Chore) (*model.Chore, error) {
	defer s.lock()()
	now := s.now()
	nc := model.Chore{
		ID:            s.st.id(),
		Name:          c.Name,
		Description:   c.Description,
		Points:        c.Points,
		EstimatedTime: c.EstimatedTime,
		AssignedTo:    c.AssignedTo,
		Status:        c.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nc.Status == "" {
		nc.Status = model.ChoreStatusPending
	}
	s.st.chores[nc.ID] = nc
	return &nc, nil
}

func (s *Store) GetChore(_ context.Context, id int64) (*model.Chore, error) {
	defer s.lock()()
	c, ok := s.st.chores[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListChores(_ context.Context) ([]model.Chore, error) {
	defer s.lock()()
	chores := sortedByID(s.st.chores, func(model.Chore) bool { return true })
	slices.Reverse(chores)
	return chores, nil
}

func (s *Store) ListChoresByStatus(_ context.Context, status string) ([]model.Chore, error) {
	defer s.lock()()
	chores := sortedByID(s.st.chores, func(c model.Chore) bool { return c.Status == status })
	slices.SortStableFunc(chores, func(a, b model.Chore) int {
		return timeOrZero(a.CompletedAt).Compare(timeOrZero(b.CompletedAt))
	})
	return chores, nil
}

func (s *Store) UpdateChore(_ context.Context, id int64, upd model.ChoreUpdate) (*model.Chore, error) {
	defer s.lock()()
	c, ok := s.st.chores[id]
	if !ok {
		return nil, nil
	}
	setIf(&c.Name, upd.Name)
	setIf(&c.Description, upd.Description)
	setIf(&c.Points, upd.Points)
	setIf(&c.EstimatedTime, upd.EstimatedTime)
	switch {
	case upd.Unassign:
		c.AssignedTo = nil
	case upd.AssignedTo != nil:
		v := *upd.AssignedTo
		c.AssignedTo = &v
	}
	c.UpdatedAt = s.now()
	s.st.chores[id] = c
	return &c, nil
}

func (s *Store) DeleteChore(_ context.Context, id int64) (bool, error) {
	defer s.lock()()
	if _, ok := s.st.chores[id]; !ok {
		return false, nil
	}
	delete(s.st.chores, id)
	for tid, t := range s.st.transactions {
		if t.ChoreID != nil && *t.ChoreID == id {
			t.ChoreID = nil
			s.st.transactions[tid] = t
		}
	}
	for nid, n := range s.st.notifications {
		if n.ChoreID != nil && *n.ChoreID == id {
			n.ChoreID = nil
			s.st.notifications[nid] = n
		}
	}
	return true, nil
}

func (s *Store) SetChoreState(_ context.Context, c *model.Chore, from string) (bool, error) {
	defer s.lock()()
	cur, ok := s.st.chores[c.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = c.Status
	cur.CompletedBy = c.CompletedBy
	cur.CompletedAt = c.CompletedAt
	cur.ReviewedBy = c.ReviewedBy
	cur.ReviewedAt = c.ReviewedAt
	cur.Comment = c.Comment
	cur.UpdatedAt = s.now()
	s.st.chores[c.ID] = cur
	return true, nil
}

// --- rewards ---

func (s *Store) CreateReward(_ context.Context, r *model.Reward) (*model.Reward, error) {
	defer s.lock()()
	nr := model.Reward{
		ID:          s.st.id(),
		Name:        r.Name,
		Description: r.Description,
		Cost:        r.Cost,
		Icon:        r.Icon,
		IsAvailable: r.IsAvailable,
		CreatedAt:   s.now(),
	}
	s.st.rewards[nr.ID] = nr
	return &nr, nil
}

func (s *Store) GetReward(_ context.Context, id int64) (*model.Reward, error) {
	defer s.lock()()
	r, ok := s.st.rewards[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) ListRewards(_ context.Context) ([]model.Reward, error) {
	defer s.lock()()
	rewards := sortedByID(s.st.rewards, func(model.Reward) bool { return true })
	slices.SortStableFunc(rewards, func(a, b model.Reward) int {
		if a.IsAvailable != b.IsAvailable {
			if a.IsAvailable {
				return -1
			}
			return 1
		}
		return a.Cost - b.Cost
	})
	return rewards, nil
}

func (s *Store) UpdateReward(_ context.Context, id int64, upd model.RewardUpdate) (*model.Reward, error) {
	defer s.lock()()
	r, ok := s.st.rewards[id]
	if !ok {
		return nil, nil
	}
	if upd.IsAvailable != nil && *upd.IsAvailable && r.ClaimedBy != nil {
		return &r, nil
	}
	setIf(&r.Name, upd.Name)
	setIf(&r.Description, upd.Description)
	setIf(&r.Cost, upd.Cost)
	setIf(&r.Icon, upd.Icon)
	setIf(&r.IsAvailable, upd.IsAvailable)
	s.st.rewards[id] = r
	return &r, nil
}

func (s *Store) DeleteReward(_ context.Context, id int64) (bool, error) {
	defer s.lock()()
	if _, ok := s.st.rewards[id]; !ok {
		return false, nil
	}
	delete(s.st.rewards, id)
	for tid, t := range s.st.transactions {
		if t.RewardID != nil && *t.RewardID == id {
			t.RewardID = nil
			s.st.transactions[tid] = t
		}
	}
	return true, nil
}

func (s *Store) ConsumeReward(_ context.Context, id, userID int64) (bool, error) {
	defer s.lock()()
	r, ok := s.st.rewards[id]
	if !ok || !r.IsAvailable {
		return false, nil
	}
	now := s.now()
	r.IsAvailable = false
	r.ClaimedBy = &userID
	r.ClaimedAt = &now
	s.st.rewards[id] = r
	return true, nil
}

// --- transactions ---

func (s *Store) CreateTransaction(_ context.Context, t *model.Transaction) (*model.Transaction, error) {
	defer s.lock()()
	nt := *t
	nt.ID = s.st.id()
	nt.CreatedAt = s.now()
	s.st.transactions[nt.ID] = nt
	return &nt, nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64) ([]model.Transaction, error) {
	defer s.lock()()
	txns := sortedByID(s.st.transactions, func(t model.Transaction) bool { return t.UserID == userID })
	slices.Reverse(txns)
	return txns, nil
}

func (s *Store) PointBalances(_ context.Context) ([]model.PointBalance, error) {
	defer s.lock()()
	byUser := make(map[int64]*model.PointBalance, len(s.st.users))
	var balances []model.PointBalance
	for _, u := range sortedByID(s.st.users, func(model.User) bool { return true }) {
		byUser[u.ID] = &model.PointBalance{UserID: u.ID, Name: u.Name}
	}
	for _, t := range s.st.transactions {
		b, ok := byUser[t.UserID]
		if !ok {
			continue
		}
		switch t.Type {
		case model.TransactionEarn:
			b.TotalEarned += t.Amount
		case model.TransactionSpend:
			b.TotalSpent += t.Amount
		}
	}
	for _, b := range byUser {
		b.Balance = b.TotalEarned - b.TotalSpent
		balances = append(balances, *b)
	}
	model.SortBalances(balances)
	return balances, nil
}

// --- notifications ---

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) (*model.Notification, error) {
	defer s.lock()()
	nn := *n
	nn.ID = s.st.id()
	nn.IsRead = false
	nn.CreatedAt = s.now()
	s.st.notifications[nn.ID] = nn
	return &nn, nil
}

func (s *Store) GetNotification(_ context.Context, id int64) (*model.Notification, error) {
	defer s.lock()()
	n, ok := s.st.notifications[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID int64, unreadOnly bool) ([]model.Notification, error) {
	defer s.lock()()
	notifs := sortedByID(s.st.notifications, func(n model.Notification) bool {
		return n.UserID == userID && (!unreadOnly || !n.IsRead)
	})
	slices.Reverse(notifs)
	return notifs, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id int64) error {
	defer s.lock()()
	if n, ok := s.st.notifications[id]; ok {
		n.IsRead = true
		s.st.notifications[id] = n
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID int64) (int64, error) {
	defer s.lock()()
	var count int64
	for id, n := range s.st.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.st.notifications[id] = n
			count++
		}
	}
	return count, nil
}

// --- helpers ---

type identified interface {
	model.User | model.Chore | model.Reward | model.Transaction | model.Notification
}

// sortedByID returns the values of m that satisfy keep, in ascending id order.
// IDs come from one counter, so id order is creation order.
func sortedByID[T identified](m map[int64]T, keep func(T) bool) []T {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v := m[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
