package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/choreboard/internal/model"
)

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Points, &u.IsAdmin,
		&u.AvatarType, &u.AvatarEmoji, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, username, name, password_hash, points, is_admin, avatar_type, avatar_emoji, avatar_url, created_at, updated_at`

func (s *SQLStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	avatarType := u.AvatarType
	if avatarType == "" {
		avatarType = model.AvatarTypeEmoji
	}
	now := s.now()
	id, err := s.insert(ctx,
		`INSERT INTO users (username, name, password_hash, points, is_admin, avatar_type, avatar_emoji, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Name, u.PasswordHash, u.IsAdmin, avatarType, u.AvatarEmoji, u.AvatarURL, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.listUsers(ctx, `SELECT `+userCols+` FROM users ORDER BY id ASC`)
}

func (s *SQLStore) ListAdmins(ctx context.Context) ([]model.User, error) {
	return s.listUsers(ctx, `SELECT `+userCols+` FROM users WHERE is_admin = ? ORDER BY id ASC`, true)
}

func (s *SQLStore) listUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *SQLStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{s.now()}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.AvatarType != nil {
		add("avatar_type", *upd.AvatarType)
	}
	if upd.AvatarEmoji != nil {
		add("avatar_emoji", *upd.AvatarEmoji)
	}
	if upd.AvatarURL != nil {
		add("avatar_url", *upd.AvatarURL)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.IsAdmin != nil {
		add("is_admin", *upd.IsAdmin)
	}
	args = append(args, id)

	if _, err := s.exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLStore) CreditPoints(ctx context.Context, userID int64, amount int) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE users SET points = points + ?, updated_at = ? WHERE id = ?`,
		amount, s.now(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("credit points: %w", err)
	}
	return changed(res)
}

func (s *SQLStore) DebitPoints(ctx context.Context, userID int64, amount int) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE users SET points = points - ?, updated_at = ? WHERE id = ? AND points >= ?`,
		amount, s.now(), userID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debit points: %w", err)
	}
	return changed(res)
}
