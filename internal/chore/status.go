package chore

import "github.com/dukerupert/choreboard/internal/model"

type Status string

const (
	StatusPending   Status = model.ChoreStatusPending
	StatusCompleted Status = model.ChoreStatusCompleted
	StatusApproved  Status = model.ChoreStatusApproved
	StatusRejected  Status = model.ChoreStatusRejected
)

// transitions lists every allowed move. Approved has no way out.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted},
	StatusRejected:  {StatusCompleted},
	StatusCompleted: {StatusApproved, StatusRejected},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a chore may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SettlementCandidates lists, in priority order, the users who may receive
// the points for an approved chore: the assignee, then the household
// default. Whoever completed the chore is a candidate only when no household
// default is configured. Unset values are skipped.
// The first candidate that exists as a user wins.
func SettlementCandidates(c *model.Chore, defaultUserID int64) []int64 {
	var out []int64
	add := func(id int64) {
		if id == 0 {
			return
		}
		for _, seen := range out {
			if seen == id {
				return
			}
		}
		out = append(out, id)
	}
	if c.AssignedTo != nil {
		add(*c.AssignedTo)
	}
	if defaultUserID != 0 {
		add(defaultUserID)
	} else if c.CompletedBy != nil {
		add(*c.CompletedBy)
	}
	return out
}
