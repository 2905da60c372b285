package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSnapshotTools() {
	// ── snapshot_project ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("snapshot_project",
		mcp.WithDescription("Capture the project's current blocks as a named snapshot"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("label", mcp.Description("Label for the snapshot (default manual)")),
	), s.handleSnapshotProject)

	// ── list_snapshots ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List a project's snapshots, newest first"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleListSnapshots)

	// ── restore_snapshot (destructive) ─────────────────
	s.mcp.AddTool(mcp.NewTool("restore_snapshot",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace the project's current blocks with a snapshot's. The current state is snapshotted first."),
		mcp.WithString("snapshotId", mcp.Description("Snapshot ID to restore"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreSnapshot)

	// ── delete_snapshot (destructive) ──────────────────
	s.mcp.AddTool(mcp.NewTool("delete_snapshot",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete one snapshot"),
		mcp.WithString("snapshotId", mcp.Description("Snapshot ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteSnapshot)
}

func (s *Server) handleSnapshotProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	label, _ := args["label"].(string)

	snap, err := s.projects.Snapshot(ctx, projectID, label)
	if err != nil {
		return nil, fmt.Errorf("snapshot project: %w", err)
	}
	return jsonResult(snap)
}

func (s *Server) handleListSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	snaps, err := s.projects.ListSnapshots(projectID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return jsonResult(snaps)
}

func (s *Server) handleRestoreSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshotID := req.GetString("snapshotId", "")
	if snapshotID == "" {
		return nil, fmt.Errorf("snapshotId is required")
	}
	if err := s.projects.RestoreSnapshot(ctx, snapshotID); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return textResult(fmt.Sprintf("Snapshot %s restored; the replaced state was snapshotted first", snapshotID)), nil
}

func (s *Server) handleDeleteSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshotID := req.GetString("snapshotId", "")
	if snapshotID == "" {
		return nil, fmt.Errorf("snapshotId is required")
	}
	if err := s.projects.DeleteSnapshot(snapshotID); err != nil {
		return nil, fmt.Errorf("delete snapshot: %w", err)
	}
	return textResult(fmt.Sprintf("Snapshot %s deleted", snapshotID)), nil
}
