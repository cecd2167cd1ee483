package model

import (
	"cmp"
	"slices"
	"time"
)

const (
	AvatarTypeEmoji = "emoji"
	AvatarTypeImage = "image"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Points       int       `json:"points"`
	IsAdmin      bool      `json:"is_admin"`
	AvatarType   string    `json:"avatar_type"`
	AvatarEmoji  string    `json:"avatar_emoji"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserUpdate carries the profile fields a PUT may change. Nil means unchanged.
type UserUpdate struct {
	Name         *string
	AvatarType   *string
	AvatarEmoji  *string
	AvatarURL    *string
	PasswordHash *string
	IsAdmin      *bool
}

type PointBalance struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}

// SortBalances orders balances highest first, ties by user id.
func SortBalances(b []PointBalance) {
	slices.SortFunc(b, func(x, y PointBalance) int {
		if c := cmp.Compare(y.Balance, x.Balance); c != 0 {
			return c
		}
		return cmp.Compare(x.UserID, y.UserID)
	})
}
