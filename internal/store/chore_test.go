package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
)

func TestChoreCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	kid := mustCreateUser(t, s, "kid", false)

	c, err := s.CreateChore(ctx, &model.Chore{Name: "Wash dishes", Description: "after dinner", Points: 50, EstimatedTime: "15 min", AssignedTo: &kid.ID})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if c.Status != model.ChoreStatusPending {
		t.Errorf("status = %q, want pending", c.Status)
	}
	if c.AssignedTo == nil || *c.AssignedTo != kid.ID {
		t.Errorf("assigned_to = %v, want %d", c.AssignedTo, kid.ID)
	}
	if c.CompletedAt != nil || c.ReviewedBy != nil {
		t.Error("fresh chore should have no completion or review")
	}

	points := 75
	updated, err := s.UpdateChore(ctx, c.ID, model.ChoreUpdate{Points: &points, Unassign: true})
	if err != nil {
		t.Fatalf("update chore: %v", err)
	}
	if updated.Points != 75 {
		t.Errorf("points = %d, want 75", updated.Points)
	}
	if updated.AssignedTo != nil {
		t.Errorf("assigned_to = %v, want nil", *updated.AssignedTo)
	}
	if updated.Name != "Wash dishes" {
		t.Errorf("name = %q, should be unchanged", updated.Name)
	}

	chores, err := s.ListChores(ctx)
	if err != nil {
		t.Fatalf("list chores: %v", err)
	}
	if len(chores) != 1 {
		t.Fatalf("len = %d, want 1", len(chores))
	}

	deleted, err := s.DeleteChore(ctx, c.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	got, _ := s.GetChore(ctx, c.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
	deleted, _ = s.DeleteChore(ctx, c.ID)
	if deleted {
		t.Error("second delete should report false")
	}
}

func TestSetChoreStateCompareAndSwap(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	kid := mustCreateUser(t, s, "kid", false)
	mom := mustCreateUser(t, s, "mom", true)

	c, _ := s.CreateChore(ctx, &model.Chore{Name: "Rake leaves", Points: 30})

	now := time.Now().UTC().Truncate(time.Second)
	next := *c
	next.Status = model.ChoreStatusCompleted
	next.CompletedBy = &kid.ID
	next.CompletedAt = &now

	ok, err := s.SetChoreState(ctx, &next, model.ChoreStatusPending)
	if err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	// Same guard again no longer matches.
	ok, err = s.SetChoreState(ctx, &next, model.ChoreStatusPending)
	if err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if ok {
		t.Error("stale guard should not apply")
	}

	approved := next
	approved.Status = model.ChoreStatusApproved
	approved.ReviewedBy = &mom.ID
	approved.ReviewedAt = &now
	approved.Comment = "nice"
	if ok, _ := s.SetChoreState(ctx, &approved, model.ChoreStatusCompleted); !ok {
		t.Fatal("approve swap should apply")
	}

	got, _ := s.GetChore(ctx, c.ID)
	if got.Status != model.ChoreStatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if got.CompletedBy == nil || *got.CompletedBy != kid.ID {
		t.Errorf("completed_by = %v, want %d", got.CompletedBy, kid.ID)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != mom.ID {
		t.Errorf("reviewed_by = %v, want %d", got.ReviewedBy, mom.ID)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, now)
	}
	if got.Comment != "nice" {
		t.Errorf("comment = %q, want nice", got.Comment)
	}
}

func TestListChoresByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	kid := mustCreateUser(t, s, "kid", false)

	a, _ := s.CreateChore(ctx, &model.Chore{Name: "A", Points: 1})
	s.CreateChore(ctx, &model.Chore{Name: "B", Points: 1})

	now := time.Now().UTC()
	done := *a
	done.Status = model.ChoreStatusCompleted
	done.CompletedBy = &kid.ID
	done.CompletedAt = &now
	if ok, _ := s.SetChoreState(ctx, &done, model.ChoreStatusPending); !ok {
		t.Fatal("complete swap should apply")
	}

	completed, err := s.ListChoresByStatus(ctx, model.ChoreStatusCompleted)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(completed) != 1 || completed[0].Name != "A" {
		t.Errorf("completed = %+v", completed)
	}

	pending, _ := s.ListChoresByStatus(ctx, model.ChoreStatusPending)
	if len(pending) != 1 || pending[0].Name != "B" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestChoreDeleteKeepsLedger(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	kid := mustCreateUser(t, s, "kid", false)
	c, _ := s.CreateChore(ctx, &model.Chore{Name: "Mop", Points: 10})

	if _, err := s.CreateTransaction(ctx, &model.Transaction{UserID: kid.ID, Type: model.TransactionEarn, Amount: 10, ChoreID: &c.ID}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if _, err := s.DeleteChore(ctx, c.ID); err != nil {
		t.Fatalf("delete chore: %v", err)
	}

	txns, _ := s.ListTransactions(ctx, kid.ID)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].ChoreID != nil {
		t.Errorf("chore_id = %v, want nil after chore delete", *txns[0].ChoreID)
	}
}
