package model

import "time"

const (
	TransactionEarn  = "earn"
	TransactionSpend = "spend"
)

// Transaction is an immutable ledger entry. Amount is always positive; Type
// gives the sign.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Type        string    `json:"type"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	ChoreID     *int64    `json:"chore_id"`
	RewardID    *int64    `json:"reward_id"`
	CreatedAt   time.Time `json:"created_at"`
}
