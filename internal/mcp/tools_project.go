package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerProjectTools() {
	// ── list_projects ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects with their ids and titles"),
	), s.handleListProjects)

	// ── create_project ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a new project. The new project becomes the active one."),
		mcp.WithString("title",
			mcp.Description("Title of the new project (defaults to Untitled)"),
		),
	), s.handleCreateProject)

	// ── rename_project ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_project",
		mcp.WithDescription("Rename a project"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("title", mcp.Description("New title"), mcp.Required()),
	), s.handleRenameProject)

	// ── delete_project (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a project with all its blocks and snapshots. This cannot be undone."),
		mcp.WithString("projectId", mcp.Description("Project ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteProject)

	// ── set_active_project ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_project",
		mcp.WithDescription("Set the active project for subsequent tool calls. Tools that accept projectId will default to this."),
		mcp.WithString("projectId", mcp.Description("ID of the project to make active"), mcp.Required()),
	), s.handleSetActiveProject)
}

func (s *Server) handleListProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.projects.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return jsonResult(projects)
}

func (s *Server) handleCreateProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	project, err := s.projects.CreateProject(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	// Auto-set as active project
	s.activeProjectID = project.ID
	return jsonResult(project)
}

func (s *Server) handleRenameProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	title, _ := args["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := s.projects.RenameProject(ctx, projectID, title); err != nil {
		return nil, fmt.Errorf("rename project: %w", err)
	}
	return textResult(fmt.Sprintf("Project %s renamed to %q", projectID, title)), nil
}

func (s *Server) handleDeleteProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("projectId", "")
	if projectID == "" {
		return nil, fmt.Errorf("projectId is required")
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("delete project: %w", err)
	}
	if s.activeProjectID == projectID {
		s.activeProjectID = ""
	}
	return textResult(fmt.Sprintf("Project %s deleted", projectID)), nil
}

func (s *Server) handleSetActiveProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("projectId", "")
	if projectID == "" {
		return nil, fmt.Errorf("projectId is required")
	}
	if _, err := s.projects.GetProject(projectID); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	s.activeProjectID = projectID
	return textResult(fmt.Sprintf("Active project set to %s", projectID)), nil
}
