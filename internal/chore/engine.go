// Package chore implements the chore lifecycle: completion, review and point
// settlement.
package chore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/choreboard/internal/apperr"
	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
)

// Notifier is the part of notify.Dispatcher the engine needs.
type Notifier interface {
	Notify(ctx context.Context, userID int64, title, message, typ string, choreID *int64) (*model.Notification, error)
	NotifyAdmins(ctx context.Context, title, message, typ string, choreID *int64) (int, error)
}

type Engine struct {
	store         store.Store
	notifier      Notifier
	defaultUserID int64
	logger        *slog.Logger
	now           func() time.Time
}

// NewEngine builds an Engine. defaultUserID receives points for unassigned
// chores; zero falls back to whoever completed the chore.
func NewEngine(s store.Store, n Notifier, defaultUserID int64, logger *slog.Logger) *Engine {
	return &Engine{
		store:         s,
		notifier:      n,
		defaultUserID: defaultUserID,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreateParams struct {
	Name          string
	Description   string
	Points        int
	EstimatedTime string
	AssignedTo    *int64
}

func (e *Engine) Create(ctx context.Context, actor auth.Actor, p CreateParams) (*model.Chore, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if p.Points <= 0 {
		return nil, apperr.Validation("points must be greater than zero")
	}
	if err := e.checkAssignee(ctx, p.AssignedTo); err != nil {
		return nil, err
	}

	return e.store.CreateChore(ctx, &model.Chore{
		Name:          name,
		Description:   strings.TrimSpace(p.Description),
		Points:        p.Points,
		EstimatedTime: strings.TrimSpace(p.EstimatedTime),
		AssignedTo:    p.AssignedTo,
		Status:        string(StatusPending),
	})
}

func (e *Engine) List(ctx context.Context) ([]model.Chore, error) {
	return e.store.ListChores(ctx)
}

func (e *Engine) Get(ctx context.Context, id int64) (*model.Chore, error) {
	c, err := e.store.GetChore(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("chore not found")
	}
	return c, nil
}

// Update edits a chore's descriptive fields in any status.
func (e *Engine) Update(ctx context.Context, actor auth.Actor, id int64, upd model.ChoreUpdate) (*model.Chore, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		upd.Name = &name
	}
	if upd.Points != nil && *upd.Points <= 0 {
		return nil, apperr.Validation("points must be greater than zero")
	}
	if !upd.Unassign {
		if err := e.checkAssignee(ctx, upd.AssignedTo); err != nil {
			return nil, err
		}
	}

	c, err := e.store.UpdateChore(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("chore not found")
	}
	return c, nil
}

func (e *Engine) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.RequireUser(actor); err != nil {
		return err
	}
	ok, err := e.store.DeleteChore(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("chore not found")
	}
	return nil
}

// Complete submits a pending or rejected chore for review and alerts every
// admin.
func (e *Engine) Complete(ctx context.Context, actor auth.Actor, id int64) (*model.Chore, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}

	var done *model.Chore
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		c, err := e.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(Status(c.Status), StatusCompleted) {
			return apperr.Conflict("chore is %s and cannot be completed", c.Status)
		}

		now := e.now()
		from := c.Status
		c.Status = string(StatusCompleted)
		c.CompletedBy = &actor.UserID
		c.CompletedAt = &now
		c.ReviewedBy = nil
		c.ReviewedAt = nil
		c.Comment = ""
		if err := e.swap(ctx, tx, c, from); err != nil {
			return err
		}
		done = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.notifier.NotifyAdmins(ctx,
		"Chore Completed - Pending Approval",
		fmt.Sprintf("%s has been completed and needs your approval", done.Name),
		model.NotifTypeChoreCompleted, &done.ID,
	); err != nil {
		e.logger.Error("notify admins of completion", "chore_id", done.ID, "error", err)
	}
	return done, nil
}

// Approve settles a completed chore: the status flip, the credit and the
// earn entry commit together, then the recipient is notified.
func (e *Engine) Approve(ctx context.Context, actor auth.Actor, id int64, comment string) (*model.Chore, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		approved  *model.Chore
		recipient *model.User
	)
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		c, err := e.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(Status(c.Status), StatusApproved) {
			return apperr.Conflict("chore is %s and cannot be approved", c.Status)
		}

		target, err := SettlementTarget(ctx, tx, c, e.defaultUserID)
		if err != nil {
			return err
		}

		now := e.now()
		c.Status = string(StatusApproved)
		c.ReviewedBy = &actor.UserID
		c.ReviewedAt = &now
		c.Comment = strings.TrimSpace(comment)
		if err := e.swap(ctx, tx, c, string(StatusCompleted)); err != nil {
			return err
		}

		ok, err := tx.CreditPoints(ctx, target.ID, c.Points)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("settlement user %d no longer exists", target.ID)
		}
		if _, err := tx.CreateTransaction(ctx, &model.Transaction{
			UserID:      target.ID,
			Type:        model.TransactionEarn,
			Amount:      c.Points,
			Description: "Approved: " + c.Name,
			ChoreID:     &c.ID,
		}); err != nil {
			return err
		}

		approved, recipient = c, target
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("chore approved", "chore_id", approved.ID, "user_id", recipient.ID, "points", approved.Points)
	if _, err := e.notifier.Notify(ctx, recipient.ID,
		"Chore Approved! 🎉",
		fmt.Sprintf("Your completion of \"%s\" has been approved. You earned %d points!", approved.Name, approved.Points),
		model.NotifTypeChoreApproved, &approved.ID,
	); err != nil {
		e.logger.Error("notify approval", "chore_id", approved.ID, "error", err)
	}
	return approved, nil
}

// Reject sends a completed chore back with a required reason. Nothing is
// credited.
func (e *Engine) Reject(ctx context.Context, actor auth.Actor, id int64, comment string) (*model.Chore, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperr.Validation("a comment is required when rejecting a chore")
	}

	var rejected *model.Chore
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		c, err := e.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(Status(c.Status), StatusRejected) {
			return apperr.Conflict("chore is %s and cannot be rejected", c.Status)
		}

		now := e.now()
		c.Status = string(StatusRejected)
		c.ReviewedBy = &actor.UserID
		c.ReviewedAt = &now
		c.Comment = comment
		if err := e.swap(ctx, tx, c, string(StatusCompleted)); err != nil {
			return err
		}
		rejected = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	submitter := e.submitter(rejected)
	if submitter == 0 {
		e.logger.Warn("rejected chore has no one to notify", "chore_id", rejected.ID)
	} else if _, err := e.notifier.Notify(ctx, submitter,
		"Chore Rejected",
		fmt.Sprintf("Your completion of \"%s\" was rejected. Reason: %s", rejected.Name, comment),
		model.NotifTypeChoreRejected, &rejected.ID,
	); err != nil {
		e.logger.Error("notify rejection", "chore_id", rejected.ID, "error", err)
	}
	return rejected, nil
}

// ListPendingApproval returns chores awaiting review, oldest submission first.
func (e *Engine) ListPendingApproval(ctx context.Context, actor auth.Actor) ([]model.Chore, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return e.store.ListChoresByStatus(ctx, string(StatusCompleted))
}

// SettlementTarget resolves the first existing user among
// SettlementCandidates. No match is a validation error.
func SettlementTarget(ctx context.Context, s store.Store, c *model.Chore, defaultUserID int64) (*model.User, error) {
	for _, id := range SettlementCandidates(c, defaultUserID) {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, apperr.Validation("chore %d has no user to receive its points", c.ID)
}

func (e *Engine) submitter(c *model.Chore) int64 {
	if c.CompletedBy != nil {
		return *c.CompletedBy
	}
	if c.AssignedTo != nil {
		return *c.AssignedTo
	}
	return e.defaultUserID
}

func (e *Engine) checkAssignee(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	u, err := e.store.GetUser(ctx, *id)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.Validation("assigned user %d does not exist", *id)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, s store.Store, id int64) (*model.Chore, error) {
	c, err := s.GetChore(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("chore not found")
	}
	return c, nil
}

// swap applies c's state only if the stored status is still from; a lost
// race surfaces as a conflict.
func (e *Engine) swap(ctx context.Context, s store.Store, c *model.Chore, from string) error {
	ok, err := s.SetChoreState(ctx, c, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("chore %d changed concurrently", c.ID)
	}
	return nil
}
