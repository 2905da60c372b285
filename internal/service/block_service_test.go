package service_test

import (
	"context"
	"testing"

	"manuscript/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// BlockService tests
// ─────────────────────────────────────────────────────────────

func seedBlock(t *testing.T, env *testEnv, pid string, typ domain.BlockType, md string) string {
	t.Helper()
	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "seed", Type: typ, Markdown: md},
	}}
	idMap, err := env.syncSvc.ApplyDiff(context.Background(), pid, diff)
	if err != nil {
		t.Fatalf("seed block: %v", err)
	}
	return idMap["seed"]
}

func TestSetSectionStatus_PersistsValidStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	before := env.countEvents("blocks:changed")
	if err := env.blocks.SetSectionStatus(ctx, id, domain.StatusWriting); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, err := env.blocks.GetBlock(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != domain.StatusWriting {
		t.Errorf("status = %q, want writing", b.Status)
	}
	if env.countEvents("blocks:changed") != before+1 {
		t.Error("setter should emit blocks:changed")
	}

	// Empty status clears.
	if err := env.blocks.SetSectionStatus(ctx, id, domain.StatusNone); err != nil {
		t.Fatalf("clear: %v", err)
	}
	b, _ = env.blocks.GetBlock(id)
	if b.Status != domain.StatusNone {
		t.Errorf("status = %q, want cleared", b.Status)
	}
}

func TestSetSectionStatus_RejectsUnknownValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	if err := env.blocks.SetSectionStatus(ctx, id, "published"); err == nil {
		t.Fatal("unknown status should be rejected")
	}
	b, _ := env.blocks.GetBlock(id)
	if b.Status != domain.StatusNone {
		t.Errorf("rejected status must not stick, got %q", b.Status)
	}
}

func TestCycleSectionStatus_AdvancesThroughCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	want := []domain.SectionStatus{
		domain.StatusNext,
		domain.StatusWriting,
		domain.StatusWaiting,
		domain.StatusReview,
		domain.StatusFinal,
		domain.StatusNext, // wraps around
	}
	for i, w := range want {
		got, err := env.blocks.CycleSectionStatus(ctx, id)
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("cycle %d returned %q, want %q", i, got, w)
		}
		b, _ := env.blocks.GetBlock(id)
		if b.Status != w {
			t.Fatalf("cycle %d persisted %q, want %q", i, b.Status, w)
		}
	}
}

func TestSetSectionTags_ReplacesList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	if err := env.blocks.SetSectionTags(ctx, id, []string{"draft", "pov-anna"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, _ := env.blocks.GetBlock(id)
	if len(b.Tags) != 2 || b.Tags[0] != "draft" || b.Tags[1] != "pov-anna" {
		t.Errorf("tags = %v", b.Tags)
	}

	if err := env.blocks.SetSectionTags(ctx, id, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	b, _ = env.blocks.GetBlock(id)
	if len(b.Tags) != 0 {
		t.Errorf("tags should be cleared, got %v", b.Tags)
	}
}

func TestSetWordGoal_StoresGoalAndUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	if err := env.blocks.SetWordGoal(ctx, id, 800, domain.GoalChars); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, _ := env.blocks.GetBlock(id)
	if b.WordGoal != 800 || b.GoalType != domain.GoalChars {
		t.Errorf("goal = %d %q", b.WordGoal, b.GoalType)
	}

	// Omitted unit defaults to words.
	if err := env.blocks.SetWordGoal(ctx, id, 500, ""); err != nil {
		t.Fatalf("set default unit: %v", err)
	}
	b, _ = env.blocks.GetBlock(id)
	if b.WordGoal != 500 || b.GoalType != domain.GoalWords {
		t.Errorf("goal = %d %q, want 500 words", b.WordGoal, b.GoalType)
	}
}

func TestSetWordGoal_ZeroClearsGoalAndUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	if err := env.blocks.SetWordGoal(ctx, id, 800, domain.GoalWords); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := env.blocks.SetWordGoal(ctx, id, 0, domain.GoalWords); err != nil {
		t.Fatalf("clear: %v", err)
	}
	b, _ := env.blocks.GetBlock(id)
	if b.WordGoal != 0 || b.GoalType != "" {
		t.Errorf("goal should clear both fields, got %d %q", b.WordGoal, b.GoalType)
	}
}

func TestSetWordGoal_RejectsUnknownUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Chapter One")

	if err := env.blocks.SetWordGoal(ctx, id, 10, "pages"); err == nil {
		t.Fatal("unknown goal unit should be rejected")
	}
}

func TestSetAggregateGoal_StoresAndClears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Part One")

	if err := env.blocks.SetAggregateGoal(ctx, id, 20000, domain.GoalWords); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, _ := env.blocks.GetBlock(id)
	if b.AggregateGoal != 20000 || b.AggregateGoalType != domain.GoalWords {
		t.Errorf("aggregate goal = %d %q", b.AggregateGoal, b.AggregateGoalType)
	}

	if err := env.blocks.SetAggregateGoal(ctx, id, -1, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	b, _ = env.blocks.GetBlock(id)
	if b.AggregateGoal != 0 || b.AggregateGoalType != "" {
		t.Errorf("aggregate goal should clear, got %d %q", b.AggregateGoal, b.AggregateGoalType)
	}
}

func TestSetParent_NestsListItemUnderList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "ls", Type: domain.BlockTypeBulletList, Markdown: "- one\n- two"},
		{TempID: "it", Type: domain.BlockTypeListItem, Markdown: "child item", AfterBlockID: "ls"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := env.blocks.SetParent(ctx, idMap["it"], idMap["ls"]); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	b, _ := env.blocks.GetBlock(idMap["it"])
	if b.ParentID != idMap["ls"] {
		t.Errorf("parent = %q, want %q", b.ParentID, idMap["ls"])
	}

	children, err := env.store.ListChildren(idMap["ls"])
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 || children[0].ID != idMap["it"] {
		t.Errorf("children = %v", children)
	}

	// Empty parent id clears the nesting.
	if err := env.blocks.SetParent(ctx, idMap["it"], ""); err != nil {
		t.Fatalf("clear parent: %v", err)
	}
	b, _ = env.blocks.GetBlock(idMap["it"])
	if b.ParentID != "" {
		t.Errorf("parent should clear, got %q", b.ParentID)
	}
}

func TestSetParent_RejectsBadParents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	otherPid := env.createProject(t, "Other")

	item := seedBlock(t, env, pid, domain.BlockTypeListItem, "an item")
	para := seedBlock(t, env, pid, "", "plain paragraph")
	foreignList := seedBlock(t, env, otherPid, domain.BlockTypeBulletList, "- far away")

	if err := env.blocks.SetParent(ctx, item, item); err == nil {
		t.Error("self parent should be rejected")
	}
	if err := env.blocks.SetParent(ctx, item, para); err == nil {
		t.Error("non-list parent should be rejected")
	}
	if err := env.blocks.SetParent(ctx, item, foreignList); err == nil {
		t.Error("cross-project parent should be rejected")
	}

	b, _ := env.blocks.GetBlock(item)
	if b.ParentID != "" {
		t.Errorf("rejected parent must not stick, got %q", b.ParentID)
	}
}

func TestSetImageMeta_UpdatesImageAttributes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", `![old alt](old.png)`)

	if err := env.blocks.SetImageMeta(ctx, id, "maps/new.png", "new alt", "The caption", 480); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, _ := env.blocks.GetBlock(id)
	if b.ImageSrc != "maps/new.png" || b.ImageAlt != "new alt" || b.ImageCaption != "The caption" || b.ImageWidth != 480 {
		t.Errorf("image meta = %q %q %q %d", b.ImageSrc, b.ImageAlt, b.ImageCaption, b.ImageWidth)
	}
}

func TestSetImageMeta_RejectsNonImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "just text")

	if err := env.blocks.SetImageMeta(ctx, id, "x.png", "", "", 0); err == nil {
		t.Fatal("non-image block should be rejected")
	}
}

func TestSetNotesFlag_Toggles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")
	id := seedBlock(t, env, pid, "", "# Scratchpad")

	if err := env.blocks.SetNotesFlag(ctx, id, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, _ := env.blocks.GetBlock(id)
	if !b.IsNotes {
		t.Error("notes flag should be set")
	}

	if err := env.blocks.SetNotesFlag(ctx, id, false); err != nil {
		t.Fatalf("unset: %v", err)
	}
	b, _ = env.blocks.GetBlock(id)
	if b.IsNotes {
		t.Error("notes flag should be cleared")
	}
}
