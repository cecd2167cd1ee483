// Package reward implements the reward catalogue and point redemption.
package reward

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/choreboard/internal/apperr"
	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/store"
)

var errReopenClaimed = apperr.Conflict("a claimed reward cannot be made available again")

type Engine struct {
	store  store.Store
	logger *slog.Logger
}

func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

// ClaimResult is the outcome of a successful redemption.
type ClaimResult struct {
	Reward      *model.Reward      `json:"reward"`
	Transaction *model.Transaction `json:"transaction"`
	NewPoints   int                `json:"new_points"`
}

// Claim redeems rewardID for userID (zero means the actor). The reward
// consumption, the debit and the spend entry commit together.
func (e *Engine) Claim(ctx context.Context, actor auth.Actor, rewardID, userID int64) (*ClaimResult, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	if userID == 0 {
		userID = actor.UserID
	}
	if err := auth.RequireOwnerOrAdmin(actor, userID); err != nil {
		return nil, err
	}

	var res ClaimResult
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		r, err := tx.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if r == nil {
			return apperr.NotFound("reward not found")
		}
		if !r.IsAvailable {
			return apperr.Conflict("reward %q has already been claimed", r.Name)
		}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user not found")
		}
		if u.Points < r.Cost {
			return apperr.InsufficientBalance("insufficient points: have %d, need %d", u.Points, r.Cost)
		}

		ok, err := tx.ConsumeReward(ctx, r.ID, u.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("reward %q has already been claimed", r.Name)
		}
		ok, err = tx.DebitPoints(ctx, u.ID, r.Cost)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InsufficientBalance("insufficient points: have %d, need %d", u.Points, r.Cost)
		}

		t, err := tx.CreateTransaction(ctx, &model.Transaction{
			UserID:      u.ID,
			Type:        model.TransactionSpend,
			Amount:      r.Cost,
			Description: "Claimed: " + r.Name,
			RewardID:    &r.ID,
		})
		if err != nil {
			return err
		}

		if res.Reward, err = tx.GetReward(ctx, r.ID); err != nil {
			return err
		}
		res.Transaction = t
		res.NewPoints = u.Points - r.Cost
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("reward claimed", "reward_id", rewardID, "user_id", userID, "new_points", res.NewPoints)
	return &res, nil
}

func (e *Engine) List(ctx context.Context) ([]model.Reward, error) {
	return e.store.ListRewards(ctx)
}

func (e *Engine) Get(ctx context.Context, id int64) (*model.Reward, error) {
	r, err := e.store.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("reward not found")
	}
	return r, nil
}

type CreateParams struct {
	Name        string
	Description string
	Cost        int
	Icon        string
	IsAvailable bool
}

func (e *Engine) Create(ctx context.Context, actor auth.Actor, p CreateParams) (*model.Reward, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if p.Cost <= 0 {
		return nil, apperr.Validation("cost must be greater than zero")
	}
	return e.store.CreateReward(ctx, &model.Reward{
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		Cost:        p.Cost,
		Icon:        p.Icon,
		IsAvailable: p.IsAvailable,
	})
}

// Update edits a reward. A claimed reward can never become available again.
func (e *Engine) Update(ctx context.Context, actor auth.Actor, id int64, upd model.RewardUpdate) (*model.Reward, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		upd.Name = &name
	}
	if upd.Cost != nil && *upd.Cost <= 0 {
		return nil, apperr.Validation("cost must be greater than zero")
	}

	var r *model.Reward
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.GetReward(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.NotFound("reward not found")
		}
		reopen := upd.IsAvailable != nil && *upd.IsAvailable
		if reopen && cur.ClaimedBy != nil {
			return errReopenClaimed
		}

		if r, err = tx.UpdateReward(ctx, id, upd); err != nil {
			return err
		}
		if r == nil {
			return apperr.NotFound("reward not found")
		}
		// The store refuses to reopen a reward claimed after the read above.
		if reopen && !r.IsAvailable {
			return errReopenClaimed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	ok, err := e.store.DeleteReward(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("reward not found")
	}
	return nil
}
