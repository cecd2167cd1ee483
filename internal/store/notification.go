package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreboard/internal/model"
)

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var choreID sql.NullInt64

	err := scanner.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &choreID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.ChoreID = int64Ptr(choreID)
	return &n, nil
}

const notificationCols = `id, user_id, title, message, type, chore_id, is_read, created_at`

func (s *SQLStore) CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	id, err := s.insert(ctx,
		`INSERT INTO notifications (user_id, title, message, type, chore_id, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Type, nullInt64(n.ChoreID), false, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return s.GetNotification(ctx, id)
}

func (s *SQLStore) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	row := s.queryRow(ctx, `SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *SQLStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]model.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifs []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

func (s *SQLStore) MarkNotificationRead(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, `UPDATE notifications SET is_read = ? WHERE id = ?`, true, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *SQLStore) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`,
		true, userID, false,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
