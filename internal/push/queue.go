package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
)

// ErrQueueFull is returned by Deliver when the backlog is at capacity. The
// notification itself is already stored; only the push is lost.
var ErrQueueFull = errors.New("push queue full")

// Sender delivers one payload to one device.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Subscriptions is the subset of store.PushStore the queue uses.
type Subscriptions interface {
	ListByUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	Unsubscribe(ctx context.Context, endpoint string) (bool, error)
}

// Queue pushes stored notifications to every device of their recipient in
// the background. It implements notify.Sink.
type Queue struct {
	mu      sync.RWMutex
	sender  Sender
	subs    Subscriptions
	jobs    chan model.Notification
	timeout time.Duration
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates a delivery queue holding at most size pending notifications.
func NewQueue(sender Sender, subs Subscriptions, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		sender:  sender,
		subs:    subs,
		jobs:    make(chan model.Notification, size),
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Start begins the delivery loop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-q.jobs:
				q.deliver(ctx, n)
			}
		}
	}()
}

// Stop gracefully stops the delivery loop. Queued notifications are dropped.
func (q *Queue) Stop() {
	q.mu.RLock()
	cancel := q.cancel
	done := q.done
	q.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Deliver enqueues n without blocking.
func (q *Queue) Deliver(_ context.Context, n model.Notification) error {
	select {
	case q.jobs <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) deliver(ctx context.Context, n model.Notification) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	subs, err := q.subs.ListByUser(ctx, n.UserID)
	if err != nil {
		q.logger.Error("list push subscriptions", "user_id", n.UserID, "error", err)
		return
	}

	payload := PayloadFor(n)
	for _, sub := range subs {
		err := q.sender.Send(ctx, &sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			if _, err := q.subs.Unsubscribe(ctx, sub.Endpoint); err != nil {
				q.logger.Error("remove expired subscription", "subscription_id", sub.ID, "error", err)
			} else {
				q.logger.Info("removed expired subscription", "subscription_id", sub.ID, "user_id", sub.UserID)
			}
		default:
			q.logger.Warn("push send failed", "subscription_id", sub.ID, "notification_id", n.ID, "error", err)
		}
	}
}
