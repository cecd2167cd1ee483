package model

import "time"

// Notification type constants
const (
	NotifTypeChoreCompleted = "chore_completed"
	NotifTypeChoreApproved  = "chore_approved"
	NotifTypeChoreRejected  = "chore_rejected"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	ChoreID   *int64    `json:"chore_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
