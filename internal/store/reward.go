package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/choreboard/internal/model"
)

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var claimedBy sql.NullInt64
	var claimedAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.Cost, &r.Icon, &r.IsAvailable, &claimedBy, &claimedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.ClaimedBy = int64Ptr(claimedBy)
	r.ClaimedAt = timePtr(claimedAt)
	return &r, nil
}

const rewardCols = `id, name, description, cost, icon, is_available, claimed_by, claimed_at, created_at`

func (s *SQLStore) CreateReward(ctx context.Context, r *model.Reward) (*model.Reward, error) {
	id, err := s.insert(ctx,
		`INSERT INTO rewards (name, description, cost, icon, is_available, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.Description, r.Cost, r.Icon, r.IsAvailable, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.GetReward(ctx, id)
}

func (s *SQLStore) GetReward(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.queryRow(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListRewards returns all rewards, available first, then by cost.
func (s *SQLStore) ListRewards(ctx context.Context) ([]model.Reward, error) {
	rows, err := s.query(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY is_available DESC, cost ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *SQLStore) UpdateReward(ctx context.Context, id int64, upd model.RewardUpdate) (*model.Reward, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Cost != nil {
		add("cost", *upd.Cost)
	}
	if upd.Icon != nil {
		add("icon", *upd.Icon)
	}
	if upd.IsAvailable != nil {
		add("is_available", *upd.IsAvailable)
	}
	if len(sets) == 0 {
		return s.GetReward(ctx, id)
	}
	args = append(args, id)

	// A claimed reward stays unavailable; the whole update is skipped.
	where := ` WHERE id = ?`
	if upd.IsAvailable != nil && *upd.IsAvailable {
		where += ` AND claimed_by IS NULL`
	}
	if _, err := s.exec(ctx, `UPDATE rewards SET `+strings.Join(sets, ", ")+where, args...); err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetReward(ctx, id)
}

func (s *SQLStore) DeleteReward(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete reward: %w", err)
	}
	return changed(res)
}

func (s *SQLStore) ConsumeReward(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE rewards SET is_available = ?, claimed_by = ?, claimed_at = ? WHERE id = ? AND is_available = ?`,
		false, userID, s.now(), id, true,
	)
	if err != nil {
		return false, fmt.Errorf("consume reward: %w", err)
	}
	return changed(res)
}
