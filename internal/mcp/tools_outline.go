package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"manuscript/internal/domain"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerOutlineTools() {
	// ── get_outline ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Get the ordered outline: one row per section leader with title, level, status, tags, body word count and goal. The bibliography section sorts last."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleGetOutline)

	// ── reorder_sections ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_sections",
		mcp.WithDescription("Reorder whole sections. Pass a JSON array of {id, markdown?, headingLevel?} leader entries in the desired order; each section moves with its body run. Sections not mentioned keep their relative order after the listed ones. Optional markdown or headingLevel rewrite the leader in the same transaction."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("order", mcp.Description("JSON array of leader entries in the new order"), mcp.Required()),
	), s.handleReorderSections)

	// ── normalize_sort_orders ──────────────────────────
	s.mcp.AddTool(mcp.NewTool("normalize_sort_orders",
		mcp.WithDescription("Rewrite a project's sort orders to clean integers, preserving document order"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleNormalizeSortOrders)
}

func (s *Server) handleGetOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	outline, err := s.outline.Outline(projectID)
	if err != nil {
		return nil, fmt.Errorf("get outline: %w", err)
	}
	return jsonResult(outline)
}

func (s *Server) handleReorderSections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	orderJSON, _ := args["order"].(string)

	var order []domain.LeaderUpdate
	if err := json.Unmarshal([]byte(orderJSON), &order); err != nil {
		return nil, fmt.Errorf("parse order JSON: %w", err)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("order array is empty")
	}

	if err := s.outline.ReorderSections(ctx, projectID, order); err != nil {
		return nil, fmt.Errorf("reorder sections: %w", err)
	}
	return textResult(fmt.Sprintf("Reordered %d sections", len(order))), nil
}

func (s *Server) handleNormalizeSortOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	n, err := s.outline.NormalizeSortOrders(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("normalize sort orders: %w", err)
	}
	return textResult(fmt.Sprintf("Rewrote %d sort keys", n)), nil
}
