package auth

import (
	"context"

	"github.com/dukerupert/choreboard/internal/model"
)

type contextKey struct{}

// Actor is the caller identity threaded through every engine call.
type Actor struct {
	UserID int64
	Admin  bool
}

// ActorFor builds an Actor from a freshly loaded user record.
func ActorFor(u *model.User) Actor {
	return Actor{UserID: u.ID, Admin: u.IsAdmin}
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

func UserID(ctx context.Context) int64 {
	a, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return a.UserID
}
