package model

import "time"

// Stored chore statuses. The allowed moves between them live in package chore.
const (
	ChoreStatusPending   = "pending"
	ChoreStatusCompleted = "completed"
	ChoreStatusApproved  = "approved"
	ChoreStatusRejected  = "rejected"
)

type Chore struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Points        int        `json:"points"`
	EstimatedTime string     `json:"estimated_time"`
	AssignedTo    *int64     `json:"assigned_to"`
	Status        string     `json:"status"`
	CompletedBy   *int64     `json:"completed_by"`
	CompletedAt   *time.Time `json:"completed_at"`
	ReviewedBy    *int64     `json:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	Comment       string     `json:"comment"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ChoreUpdate is a partial update. Status is absent; it only moves through
// the lifecycle operations.
type ChoreUpdate struct {
	Name          *string
	Description   *string
	Points        *int
	EstimatedTime *string
	AssignedTo    *int64
	Unassign      bool
}
