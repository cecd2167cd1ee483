package store

import (
	"context"
	"testing"

	"github.com/dukerupert/choreboard/internal/model"
)

func TestRewardCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r, err := s.CreateReward(ctx, &model.Reward{Name: "Movie Night", Description: "pick the film", Cost: 200, Icon: "🎬", IsAvailable: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if !r.IsAvailable || r.ClaimedBy != nil {
		t.Errorf("fresh reward = %+v", r)
	}

	cost := 250
	updated, err := s.UpdateReward(ctx, r.ID, model.RewardUpdate{Cost: &cost})
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if updated.Cost != 250 || updated.Name != "Movie Night" {
		t.Errorf("update = %+v", updated)
	}

	same, err := s.UpdateReward(ctx, r.ID, model.RewardUpdate{})
	if err != nil || same.Cost != 250 {
		t.Errorf("empty update = %+v, %v", same, err)
	}

	deleted, err := s.DeleteReward(ctx, r.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if got, _ := s.GetReward(ctx, r.ID); got != nil {
		t.Error("expected nil after delete")
	}
}

func TestConsumeRewardOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	kid := mustCreateUser(t, s, "kid", false)
	r, _ := s.CreateReward(ctx, &model.Reward{Name: "Ice cream", Cost: 20, IsAvailable: true})

	ok, err := s.ConsumeReward(ctx, r.ID, kid.ID)
	if err != nil || !ok {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}
	ok, err = s.ConsumeReward(ctx, r.ID, kid.ID)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Error("second consume should not apply")
	}

	got, _ := s.GetReward(ctx, r.ID)
	if got.IsAvailable {
		t.Error("reward should be unavailable")
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != kid.ID || got.ClaimedAt == nil {
		t.Errorf("claim fields = %v %v", got.ClaimedBy, got.ClaimedAt)
	}
}

func TestUpdateRewardKeepsClaimedUnavailable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	kid := mustCreateUser(t, s, "kid", false)
	r, _ := s.CreateReward(ctx, &model.Reward{Name: "Ice cream", Cost: 20, IsAvailable: true})
	if ok, err := s.ConsumeReward(ctx, r.ID, kid.ID); err != nil || !ok {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}

	yes := true
	name := "Ice cream sundae"
	got, err := s.UpdateReward(ctx, r.ID, model.RewardUpdate{Name: &name, IsAvailable: &yes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.IsAvailable {
		t.Error("claimed reward was reopened")
	}
	if got.Name != "Ice cream" {
		t.Errorf("name = %q, refused update should change nothing", got.Name)
	}
}

func TestListRewardsAvailableFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	s.CreateReward(ctx, &model.Reward{Name: "Gone", Cost: 5, IsAvailable: false})
	s.CreateReward(ctx, &model.Reward{Name: "Big", Cost: 100, IsAvailable: true})
	s.CreateReward(ctx, &model.Reward{Name: "Small", Cost: 10, IsAvailable: true})

	rewards, err := s.ListRewards(ctx)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	want := []string{"Small", "Big", "Gone"}
	if len(rewards) != len(want) {
		t.Fatalf("len = %d, want %d", len(rewards), len(want))
	}
	for i, name := range want {
		if rewards[i].Name != name {
			t.Errorf("rewards[%d] = %q, want %q", i, rewards[i].Name, name)
		}
	}
}
