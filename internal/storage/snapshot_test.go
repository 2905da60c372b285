package storage_test

import (
	"fmt"
	"testing"

	"manuscript/internal/domain"
	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// SnapshotStore against in-memory sqlite
// ─────────────────────────────────────────────────────────────

func TestSnapshotStore_PushAndGet(t *testing.T) {
	store := storage.NewSnapshotStore(openTestDB(t))

	blocks := []domain.Block{
		{ID: "b1", ProjectID: "p1", SortOrder: 1, Type: domain.BlockTypeHeading, TextContent: "T", HeadingLevel: 1},
		{ID: "b2", ProjectID: "p1", SortOrder: 2, Type: domain.BlockTypeParagraph, TextContent: "body words"},
	}
	snap, err := store.Push("p1", "before replace", blocks)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if snap.ID == "" || snap.Label != "before replace" {
		t.Errorf("snapshot meta = %+v", snap)
	}

	got, restored, err := store.Get(snap.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ProjectID != "p1" {
		t.Errorf("projectId = %q", got.ProjectID)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 blocks in payload, got %d", len(restored))
	}
	if restored[0].ID != "b1" || restored[1].TextContent != "body words" {
		t.Errorf("payload = %+v", restored)
	}
}

func TestSnapshotStore_PushNilBlocks(t *testing.T) {
	store := storage.NewSnapshotStore(openTestDB(t))

	snap, err := store.Push("p1", "empty", nil)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	_, blocks, err := store.Get(snap.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("expected empty payload, got %d blocks", len(blocks))
	}
}

func TestSnapshotStore_ListNewestFirst(t *testing.T) {
	store := storage.NewSnapshotStore(openTestDB(t))

	for i := 0; i < 3; i++ {
		if _, err := store.Push("p1", fmt.Sprintf("s%d", i), nil); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if _, err := store.Push("p2", "other", nil); err != nil {
		t.Fatalf("push: %v", err)
	}

	snaps, err := store.List("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i, want := range []string{"s2", "s1", "s0"} {
		if snaps[i].Label != want {
			t.Errorf("snaps[%d] = %s, want %s", i, snaps[i].Label, want)
		}
	}
}

func TestSnapshotStore_PrunesHistoryBeyondCap(t *testing.T) {
	store := storage.NewSnapshotStore(openTestDB(t))

	// The cap is 40 per project; the oldest entries fall off.
	for i := 0; i < 45; i++ {
		if _, err := store.Push("p1", fmt.Sprintf("s%d", i), nil); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	snaps, err := store.List("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 40 {
		t.Fatalf("expected history capped at 40, got %d", len(snaps))
	}
	if snaps[0].Label != "s44" {
		t.Errorf("newest = %s, want s44", snaps[0].Label)
	}
	if snaps[len(snaps)-1].Label != "s5" {
		t.Errorf("oldest kept = %s, want s5", snaps[len(snaps)-1].Label)
	}
}

func TestSnapshotStore_Delete(t *testing.T) {
	store := storage.NewSnapshotStore(openTestDB(t))

	snap, err := store.Push("p1", "doomed", nil)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := store.Delete(snap.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(snap.ID); err == nil {
		t.Fatal("expected error for deleted snapshot")
	}
}

func TestSnapshotStore_DeleteByProject(t *testing.T) {
	store := storage.NewSnapshotStore(openTestDB(t))

	for i := 0; i < 2; i++ {
		if _, err := store.Push("p1", "s", nil); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if err := store.DeleteByProject("p1"); err != nil {
		t.Fatalf("delete by project: %v", err)
	}
	snaps, err := store.List("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected no snapshots, got %d", len(snaps))
	}
}
