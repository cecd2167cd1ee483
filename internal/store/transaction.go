package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreboard/internal/model"
)

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var choreID, rewardID sql.NullInt64

	err := scanner.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &choreID, &rewardID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.ChoreID = int64Ptr(choreID)
	t.RewardID = int64Ptr(rewardID)
	return &t, nil
}

const transactionCols = `id, user_id, type, amount, description, chore_id, reward_id, created_at`

func (s *SQLStore) CreateTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	id, err := s.insert(ctx,
		`INSERT INTO transactions (user_id, type, amount, description, chore_id, reward_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Type, t.Amount, t.Description, nullInt64(t.ChoreID), nullInt64(t.RewardID), s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	row := s.queryRow(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	created, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return created, nil
}

// ListTransactions returns a user's ledger, newest first.
func (s *SQLStore) ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := s.query(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func (s *SQLStore) PointBalances(ctx context.Context) ([]model.PointBalance, error) {
	rows, err := s.query(ctx,
		`SELECT u.id, u.name,
		        COALESCE(SUM(CASE WHEN t.type = 'earn' THEN t.amount ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN t.type = 'spend' THEN t.amount ELSE 0 END), 0)
		 FROM users u
		 LEFT JOIN transactions t ON t.user_id = u.id
		 GROUP BY u.id, u.name
		 ORDER BY u.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("point balances: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		var b model.PointBalance
		if err := rows.Scan(&b.UserID, &b.Name, &b.TotalEarned, &b.TotalSpent); err != nil {
			return nil, fmt.Errorf("scan point balance: %w", err)
		}
		b.Balance = b.TotalEarned - b.TotalSpent
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	model.SortBalances(balances)
	return balances, nil
}
