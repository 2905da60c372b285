package service_test

import (
	"context"
	"testing"
)

// ─────────────────────────────────────────────────────────────
// ProjectService tests
// ─────────────────────────────────────────────────────────────

func TestCreateProject_DefaultsTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.projects.CreateProject(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", p.Title)
	}
	if p.ID == "" {
		t.Error("project should get an id")
	}
	if env.countEvents("project:created") != 1 {
		t.Error("expected a project:created emission")
	}
}

func TestRenameProject_UpdatesTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Working Title")

	if err := env.projects.RenameProject(ctx, pid, "Final Title"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	p, err := env.projects.GetProject(pid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Title != "Final Title" {
		t.Errorf("title = %q", p.Title)
	}

	if err := env.projects.RenameProject(ctx, "no-such-project", "x"); err == nil {
		t.Error("renaming an unknown project should fail")
	}
}

func TestDeleteProject_RemovesBlocksAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Doomed")

	if err := env.syncSvc.ReplaceDocument(ctx, pid, "# Gone\n\nbody\n"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := env.projects.Snapshot(ctx, pid, "keep"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if err := env.projects.DeleteProject(ctx, pid); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := env.projects.GetProject(pid); err == nil {
		t.Error("project should be gone")
	}
	blocks, _ := env.store.ListBlocks(pid)
	if len(blocks) != 0 {
		t.Errorf("blocks should be gone, got %d", len(blocks))
	}
	snaps, _ := env.snaps.List(pid)
	if len(snaps) != 0 {
		t.Errorf("snapshots should be gone, got %d", len(snaps))
	}
	if env.countEvents("project:deleted") != 1 {
		t.Error("expected a project:deleted emission")
	}
}

func TestSnapshot_DefaultsLabelToManual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	if err := env.syncSvc.ReplaceDocument(ctx, pid, "# One\n\nfirst\n"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := env.projects.Snapshot(ctx, pid, "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Label != "manual" {
		t.Errorf("label = %q, want manual", snap.Label)
	}
	if env.countEvents("snapshot:created") != 1 {
		t.Error("expected a snapshot:created emission")
	}

	snaps, err := env.projects.ListSnapshots(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != snap.ID {
		t.Errorf("history = %+v", snaps)
	}
}

func TestRestoreSnapshot_RevertsContentAndIsUndoable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pid := env.createProject(t, "Novel")

	v1 := "# One\n\nfirst draft\n"
	v2 := "# Two\n\nsecond draft\n"

	if err := env.syncSvc.ReplaceDocument(ctx, pid, v1); err != nil {
		t.Fatalf("seed v1: %v", err)
	}
	snap1, err := env.projects.Snapshot(ctx, pid, "v1")
	if err != nil {
		t.Fatalf("snapshot v1: %v", err)
	}
	if err := env.syncSvc.ReplaceDocument(ctx, pid, v2); err != nil {
		t.Fatalf("move to v2: %v", err)
	}

	if err := env.projects.RestoreSnapshot(ctx, snap1.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	out, err := env.syncSvc.ExportDocument(pid, false)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != v1 {
		t.Errorf("restored content = %q, want v1", out)
	}

	// The restore itself was snapshotted, so it can be undone.
	snaps, err := env.projects.ListSnapshots(pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) == 0 || snaps[0].Label != "before restore" {
		t.Fatalf("newest snapshot should be 'before restore', got %+v", snaps)
	}
	if err := env.projects.RestoreSnapshot(ctx, snaps[0].ID); err != nil {
		t.Fatalf("undo restore: %v", err)
	}
	out, _ = env.syncSvc.ExportDocument(pid, false)
	if out != v2 {
		t.Errorf("undone content = %q, want v2", out)
	}
}

func TestRestoreSnapshot_UnknownIDFails(t *testing.T) {
	env := newTestEnv(t)
	if err := env.projects.RestoreSnapshot(context.Background(), "missing"); err == nil {
		t.Error("restoring an unknown snapshot should fail")
	}
}
