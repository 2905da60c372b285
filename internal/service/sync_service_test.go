package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"manuscript/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// SyncService.ApplyDiff
// ─────────────────────────────────────────────────────────────

func TestApplyDiff_InsertIntoEmptyProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "t1", Type: domain.BlockTypeParagraph, Markdown: "Hello world"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	permID, ok := idMap["t1"]
	if !ok || permID == "" {
		t.Fatalf("idMap missing t1: %v", idMap)
	}

	blocks, err := env.store.ListBlocks(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.ID != permID {
		t.Errorf("stored id %s != mapped id %s", b.ID, permID)
	}
	if b.SortOrder != 1 {
		t.Errorf("first block should get key 1, got %v", b.SortOrder)
	}
	if b.TextContent != "Hello world" || b.WordCount != 2 {
		t.Errorf("content = %q (%d words)", b.TextContent, b.WordCount)
	}
	if env.countEvents("blocks:changed") == 0 {
		t.Error("expected a blocks:changed emission")
	}
}

func TestApplyDiff_InsertAtMidpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	seed := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "a", Markdown: "first"},
		{TempID: "b", Markdown: "second", AfterBlockID: "a"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	mid := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "m", Markdown: "between", AfterBlockID: idMap["a"]},
	}}
	midMap, err := env.syncSvc.ApplyDiff(ctx, pid, mid)
	if err != nil {
		t.Fatalf("mid insert: %v", err)
	}

	blocks, err := env.store.ListBlocks(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	wantOrder := []string{idMap["a"], midMap["m"], idMap["b"]}
	for i, want := range wantOrder {
		if blocks[i].ID != want {
			t.Fatalf("blocks[%d] = %s, want %s", i, blocks[i].ID, want)
		}
	}
	if blocks[1].SortOrder != 1.5 {
		t.Errorf("midpoint key = %v, want 1.5", blocks[1].SortOrder)
	}
}

func TestApplyDiff_TempIDResolvesWithinDiff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "t1", Markdown: "one"},
		{TempID: "t2", Markdown: "two", AfterBlockID: "t1"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	blocks, err := env.store.ListBlocks(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].ID != idMap["t1"] || blocks[1].ID != idMap["t2"] {
		t.Errorf("order = %s, %s", blocks[0].ID, blocks[1].ID)
	}
}

func TestApplyDiff_RenumbersWhenMidpointDegenerates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	// Adjacent float64 keys leave no representable midpoint.
	a := &domain.Block{ID: "blk-a", ProjectID: pid, SortOrder: 1.0, Type: domain.BlockTypeParagraph, TextContent: "a", Markdown: "a"}
	b := &domain.Block{ID: "blk-b", ProjectID: pid, SortOrder: math.Nextafter(1.0, 2), Type: domain.BlockTypeParagraph, TextContent: "b", Markdown: "b"}
	for _, blk := range []*domain.Block{a, b} {
		if err := env.store.CreateBlock(blk); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "m", Markdown: "wedge", AfterBlockID: "blk-a"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	blocks, err := env.store.ListBlocks(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	wantOrder := []string{"blk-a", idMap["m"], "blk-b"}
	wantKeys := []float64{1, 1.5, 2}
	for i := range blocks {
		if blocks[i].ID != wantOrder[i] {
			t.Fatalf("blocks[%d] = %s, want %s", i, blocks[i].ID, wantOrder[i])
		}
		if blocks[i].SortOrder != wantKeys[i] {
			t.Errorf("blocks[%d] key = %v, want %v", i, blocks[i].SortOrder, wantKeys[i])
		}
	}
}

func TestApplyDiff_MarkupWinsOverCallerType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "t1", Type: domain.BlockTypeParagraph, Markdown: "## Chapter"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	b, err := env.store.GetBlock(idMap["t1"])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Type != domain.BlockTypeHeading || b.HeadingLevel != 2 {
		t.Errorf("heading marks should win: type=%q level=%d", b.Type, b.HeadingLevel)
	}
	if b.TextContent != "Chapter" {
		t.Errorf("text = %q", b.TextContent)
	}
}

func TestApplyDiff_PromotesUpdateForUnknownTempID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Updates: []domain.BlockUpdate{
		{ID: "temp-x", Markdown: domain.Some("New text")},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	permID, ok := idMap["temp-x"]
	if !ok {
		t.Fatal("promoted update should map its temp id")
	}
	b, err := env.store.GetBlock(permID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.TextContent != "New text" || b.Type != domain.BlockTypeParagraph {
		t.Errorf("promoted block = %+v", b)
	}
}

func TestApplyDiff_SkipsUnknownPermanentID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Updates: []domain.BlockUpdate{
		{ID: uuid.New().String(), Markdown: domain.Some("ghost")},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(idMap) != 0 {
		t.Errorf("nothing should be mapped, got %v", idMap)
	}

	blocks, err := env.store.ListBlocks(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("update of an unknown permanent id must not create a block")
	}
}

func TestApplyDiff_SkipsUnknownDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Deletes: []string{"never-existed"}}
	if _, err := env.syncSvc.ApplyDiff(ctx, pid, diff); err != nil {
		t.Fatalf("unknown delete should be skipped, got %v", err)
	}
}

func TestApplyDiff_UpdateRecountsWords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	seed := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "t1", Markdown: "one two three"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	update := &domain.BlockDiff{Updates: []domain.BlockUpdate{
		{ID: idMap["t1"], Markdown: domain.Some("one two three four five")},
	}}
	if _, err := env.syncSvc.ApplyDiff(ctx, pid, update); err != nil {
		t.Fatalf("update: %v", err)
	}

	b, err := env.store.GetBlock(idMap["t1"])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.WordCount != 5 {
		t.Errorf("word count = %d, want 5", b.WordCount)
	}
}

func TestApplyDiff_HeadingEditedToPlainTextDemotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	seed := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "t1", Markdown: "# Heading"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	update := &domain.BlockDiff{Updates: []domain.BlockUpdate{
		{ID: idMap["t1"], Markdown: domain.Some("no marks anymore")},
	}}
	if _, err := env.syncSvc.ApplyDiff(ctx, pid, update); err != nil {
		t.Fatalf("update: %v", err)
	}

	b, err := env.store.GetBlock(idMap["t1"])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Type != domain.BlockTypeParagraph || b.HeadingLevel != 0 {
		t.Errorf("heading without marks should demote: type=%q level=%d", b.Type, b.HeadingLevel)
	}
}

func TestApplyDiff_SecondBibliographyFlagDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	diff := &domain.BlockDiff{Inserts: []domain.BlockInsert{
		{TempID: "b1", Type: domain.BlockTypeBibliography, Markdown: "# References"},
		{TempID: "b2", Type: domain.BlockTypeBibliography, Markdown: "# More References"},
	}}
	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	first, err := env.store.GetBlock(idMap["b1"])
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	second, err := env.store.GetBlock(idMap["b2"])
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if !first.IsBibliography {
		t.Error("first bibliography should keep its flag")
	}
	if second.IsBibliography {
		t.Error("second bibliography flag should be dropped")
	}
}

func TestApplyDiff_NilAndEmptyDiffsAreNoops(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	idMap, err := env.syncSvc.ApplyDiff(ctx, pid, nil)
	if err != nil || len(idMap) != 0 {
		t.Fatalf("nil diff: map=%v err=%v", idMap, err)
	}
	idMap, err = env.syncSvc.ApplyDiff(ctx, pid, &domain.BlockDiff{})
	if err != nil || len(idMap) != 0 {
		t.Fatalf("empty diff: map=%v err=%v", idMap, err)
	}
}
