// Package notify records per-user notifications and fans them out to live
// delivery channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/choreboard/internal/apperr"
	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
)

// Sink receives every notification after it has been persisted. Deliver must
// not block on the network; the push queue and websocket hub both enqueue.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n model.Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

type Dispatcher struct {
	store  store.Store
	logger *slog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

func NewDispatcher(s store.Store, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{store: s, logger: logger, sinks: sinks}
}

// AddSink registers another delivery channel.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

// Notify persists an unread notification for userID and hands it to every sink.
// Sink failures are logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, title, message, typ string, choreID *int64) (*model.Notification, error) {
	n, err := d.store.CreateNotification(ctx, &model.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
		ChoreID: choreID,
	})
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Deliver(ctx, *n); err != nil {
			d.logger.Warn("notification sink failed", "notification_id", n.ID, "user_id", userID, "error", err)
		}
	}
	return n, nil
}

// NotifyAdmins sends one notification to each admin. It stops at the first
// storage error; admins already notified keep theirs.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, title, message, typ string, choreID *int64) (int, error) {
	admins, err := d.store.ListAdmins(ctx)
	if err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}
	sent := 0
	for _, a := range admins {
		if _, err := d.Notify(ctx, a.ID, title, message, typ, choreID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// MarkRead flags one notification read. Repeating it is harmless.
func (d *Dispatcher) MarkRead(ctx context.Context, actor auth.Actor, id int64) (*model.Notification, error) {
	n, err := d.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperr.NotFound("notification not found")
	}
	if err := auth.RequireOwnerOrAdmin(actor, n.UserID); err != nil {
		return nil, err
	}
	if !n.IsRead {
		if err := d.store.MarkNotificationRead(ctx, id); err != nil {
			return nil, err
		}
		n.IsRead = true
	}
	return n, nil
}

// MarkAllRead flags every unread notification of userID and returns how many
// changed.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, userID)
}

// ListAll returns userID's notifications, newest first.
func (d *Dispatcher) ListAll(ctx context.Context, userID int64) ([]model.Notification, error) {
	return d.store.ListNotifications(ctx, userID, false)
}

// ListUnread returns userID's unread notifications, newest first.
func (d *Dispatcher) ListUnread(ctx context.Context, userID int64) ([]model.Notification, error) {
	return d.store.ListNotifications(ctx, userID, true)
}
