package chore

import (
	"slices"
	"testing"

	"github.com/dukerupert/choreboard/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusRejected, StatusCompleted, true},
		{StatusCompleted, StatusApproved, true},
		{StatusCompleted, StatusRejected, true},
		{StatusPending, StatusApproved, false},
		{StatusPending, StatusRejected, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusApproved, StatusCompleted, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusPending, false},
		{StatusRejected, StatusApproved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusCompleted, StatusApproved, StatusRejected} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("overdue").Valid() {
		t.Error("overdue should not be valid")
	}
}

func TestSettlementCandidates(t *testing.T) {
	assignee, completer := int64(2), int64(3)

	tests := []struct {
		name  string
		chore model.Chore
		def   int64
		want  []int64
	}{
		{"assignee first", model.Chore{AssignedTo: &assignee, CompletedBy: &completer}, 1, []int64{2, 3, 1}},
		{"completer when unassigned", model.Chore{CompletedBy: &completer}, 1, []int64{3, 1}},
		{"default only", model.Chore{}, 1, []int64{1}},
		{"nobody", model.Chore{}, 0, nil},
		{"dedupe", model.Chore{AssignedTo: &assignee, CompletedBy: &assignee}, 2, []int64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SettlementCandidates(&tt.chore, tt.def)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
