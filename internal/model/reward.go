package model

import "time"

type Reward struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cost        int        `json:"cost"`
	Icon        string     `json:"icon"`
	IsAvailable bool       `json:"is_available"`
	ClaimedBy   *int64     `json:"claimed_by"`
	ClaimedAt   *time.Time `json:"claimed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type RewardUpdate struct {
	Name        *string
	Description *string
	Cost        *int
	Icon        *string
	IsAvailable *bool
}
