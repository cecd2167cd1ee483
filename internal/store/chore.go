package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/choreboard/internal/model"
)

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var assignedTo, completedBy, reviewedBy sql.NullInt64
	var completedAt, reviewedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.Name, &c.Description, &c.Points, &c.EstimatedTime,
		&assignedTo, &c.Status, &completedBy, &completedAt,
		&reviewedBy, &reviewedAt, &c.Comment,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.AssignedTo = int64Ptr(assignedTo)
	c.CompletedBy = int64Ptr(completedBy)
	c.CompletedAt = timePtr(completedAt)
	c.ReviewedBy = int64Ptr(reviewedBy)
	c.ReviewedAt = timePtr(reviewedAt)
	return &c, nil
}

const choreCols = `id, name, description, points, estimated_time, assigned_to, status, completed_by, completed_at, reviewed_by, reviewed_at, comment, created_at, updated_at`

func (s *SQLStore) CreateChore(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	status := c.Status
	if status == "" {
		status = model.ChoreStatusPending
	}
	now := s.now()
	id, err := s.insert(ctx,
		`INSERT INTO chores (name, description, points, estimated_time, assigned_to, status, comment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		c.Name, c.Description, c.Points, c.EstimatedTime, nullInt64(c.AssignedTo), status, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetChore(ctx, id)
}

func (s *SQLStore) GetChore(ctx context.Context, id int64) (*model.Chore, error) {
	row := s.queryRow(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// ListChores returns all chores, newest first.
func (s *SQLStore) ListChores(ctx context.Context) ([]model.Chore, error) {
	return s.listChores(ctx, `SELECT `+choreCols+` FROM chores ORDER BY created_at DESC, id DESC`)
}

// ListChoresByStatus returns chores in one status, oldest completion first.
func (s *SQLStore) ListChoresByStatus(ctx context.Context, status string) ([]model.Chore, error) {
	return s.listChores(ctx,
		`SELECT `+choreCols+` FROM chores WHERE status = ? ORDER BY completed_at ASC, id ASC`,
		status,
	)
}

func (s *SQLStore) listChores(ctx context.Context, query string, args ...any) ([]model.Chore, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *SQLStore) UpdateChore(ctx context.Context, id int64, upd model.ChoreUpdate) (*model.Chore, error) {
	sets := []string{"updated_at = ?"}
	args := []any{s.now()}
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
	if upd.Points != nil {
		add("points", *upd.Points)
	}
	if upd.EstimatedTime != nil {
		add("estimated_time", *upd.EstimatedTime)
	}
	switch {
	case upd.Unassign:
		add("assigned_to", sql.NullInt64{})
	case upd.AssignedTo != nil:
		add("assigned_to", *upd.AssignedTo)
	}
	args = append(args, id)

	if _, err := s.exec(ctx, `UPDATE chores SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetChore(ctx, id)
}

func (s *SQLStore) DeleteChore(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete chore: %w", err)
	}
	return changed(res)
}

func (s *SQLStore) SetChoreState(ctx context.Context, c *model.Chore, from string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE chores
		 SET status = ?, completed_by = ?, completed_at = ?, reviewed_by = ?, reviewed_at = ?, comment = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		c.Status, nullInt64(c.CompletedBy), nullTime(c.CompletedAt),
		nullInt64(c.ReviewedBy), nullTime(c.ReviewedAt), c.Comment, s.now(),
		c.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("set chore state: %w", err)
	}
	return changed(res)
}
