package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"manuscript/internal/domain"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerBlockTools() {
	// ── list_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List a project's blocks in document order, optionally filtered by type"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("type", mcp.Description("Filter by block type (optional)")),
	), s.handleListBlocks)

	// ── get_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_block",
		mcp.WithDescription("Get one block with all its content and metadata"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleGetBlock)

	// ── set_section_status ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_section_status",
		mcp.WithDescription("Set the writing status of a section leader block"),
		mcp.WithString("blockId", mcp.Description("Leader block ID"), mcp.Required()),
		mcp.WithString("status",
			mcp.Description("One of: next, writing, waiting, review, final"),
			mcp.Required(),
		),
	), s.handleSetSectionStatus)

	// ── cycle_section_status ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("cycle_section_status",
		mcp.WithDescription("Advance a section's status to the next stage (next → writing → waiting → review → final → next)"),
		mcp.WithString("blockId", mcp.Description("Leader block ID"), mcp.Required()),
	), s.handleCycleSectionStatus)

	// ── set_section_tags ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_section_tags",
		mcp.WithDescription("Replace the tags on a section leader block"),
		mcp.WithString("blockId", mcp.Description("Leader block ID"), mcp.Required()),
		mcp.WithString("tags", mcp.Description("Comma-separated tags; empty clears them")),
	), s.handleSetSectionTags)

	// ── set_word_goal ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_word_goal",
		mcp.WithDescription("Set the per-section word goal on a leader block. A goal of 0 clears it."),
		mcp.WithString("blockId", mcp.Description("Leader block ID"), mcp.Required()),
		mcp.WithNumber("goal", mcp.Description("Goal count; 0 clears"), mcp.Required()),
		mcp.WithString("goalType", mcp.Description("words or chars (default words)")),
	), s.handleSetWordGoal)

	// ── set_aggregate_goal ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_aggregate_goal",
		mcp.WithDescription("Set the aggregate goal covering a leader's whole subtree of following sections. A goal of 0 clears it."),
		mcp.WithString("blockId", mcp.Description("Leader block ID"), mcp.Required()),
		mcp.WithNumber("goal", mcp.Description("Goal count; 0 clears"), mcp.Required()),
		mcp.WithString("goalType", mcp.Description("words or chars (default words)")),
	), s.handleSetAggregateGoal)

	// ── set_parent ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_parent",
		mcp.WithDescription("Nest a list item under a list block, or clear the nesting"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("List block to nest under; empty clears the parent")),
	), s.handleSetParent)

	// ── set_image_meta ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_image_meta",
		mcp.WithDescription("Update the source, alt text, caption and display width of an image block"),
		mcp.WithString("blockId", mcp.Description("Image block ID"), mcp.Required()),
		mcp.WithString("src", mcp.Description("Image source path or URL"), mcp.Required()),
		mcp.WithString("alt", mcp.Description("Alt text")),
		mcp.WithString("caption", mcp.Description("Caption")),
		mcp.WithNumber("width", mcp.Description("Display width in pixels; 0 clears")),
	), s.handleSetImageMeta)

	// ── set_notes_flag ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_notes_flag",
		mcp.WithDescription("Mark or unmark a section leader as notes, excluded from clean exports"),
		mcp.WithString("blockId", mcp.Description("Leader block ID"), mcp.Required()),
		mcp.WithBoolean("isNotes", mcp.Description("Whether the section is notes"), mcp.Required()),
	), s.handleSetNotesFlag)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}

	blocks, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	filterType, _ := args["type"].(string)
	summaries := make([]blockSummary, 0, len(blocks))
	for _, b := range blocks {
		if filterType != "" && string(b.Type) != filterType {
			continue
		}
		summaries = append(summaries, summarizeBlock(b))
	}
	return jsonResult(summaries)
}

func (s *Server) handleGetBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(block)
}

func (s *Server) handleSetSectionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	status, _ := args["status"].(string)
	if blockID == "" || status == "" {
		return nil, fmt.Errorf("blockId and status are required")
	}
	if err := s.blocks.SetSectionStatus(ctx, blockID, domain.SectionStatus(status)); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return textResult(fmt.Sprintf("Status of %s set to %s", blockID, status)), nil
}

func (s *Server) handleCycleSectionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	status, err := s.blocks.CycleSectionStatus(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("cycle status: %w", err)
	}
	return textResult(fmt.Sprintf("Status of %s is now %s", blockID, status)), nil
}

func (s *Server) handleSetSectionTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	tagsStr, _ := args["tags"].(string)
	tags := splitTags(tagsStr)
	if err := s.blocks.SetSectionTags(ctx, blockID, tags); err != nil {
		return nil, fmt.Errorf("set tags: %w", err)
	}
	return textResult(fmt.Sprintf("Tags of %s set to %v", blockID, tags)), nil
}

func (s *Server) handleSetWordGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	goal := int(getFloat(args, "goal", 0))
	goalType, _ := args["goalType"].(string)
	if err := s.blocks.SetWordGoal(ctx, blockID, goal, domain.GoalType(goalType)); err != nil {
		return nil, fmt.Errorf("set word goal: %w", err)
	}
	if goal <= 0 {
		return textResult(fmt.Sprintf("Word goal of %s cleared", blockID)), nil
	}
	return textResult(fmt.Sprintf("Word goal of %s set to %d", blockID, goal)), nil
}

func (s *Server) handleSetAggregateGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	goal := int(getFloat(args, "goal", 0))
	goalType, _ := args["goalType"].(string)
	if err := s.blocks.SetAggregateGoal(ctx, blockID, goal, domain.GoalType(goalType)); err != nil {
		return nil, fmt.Errorf("set aggregate goal: %w", err)
	}
	if goal <= 0 {
		return textResult(fmt.Sprintf("Aggregate goal of %s cleared", blockID)), nil
	}
	return textResult(fmt.Sprintf("Aggregate goal of %s set to %d", blockID, goal)), nil
}

func (s *Server) handleSetParent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	parentID, _ := args["parentId"].(string)
	if err := s.blocks.SetParent(ctx, blockID, parentID); err != nil {
		return nil, fmt.Errorf("set parent: %w", err)
	}
	if parentID == "" {
		return textResult(fmt.Sprintf("Parent of %s cleared", blockID)), nil
	}
	return textResult(fmt.Sprintf("Block %s nested under %s", blockID, parentID)), nil
}

func (s *Server) handleSetImageMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	src, _ := args["src"].(string)
	if blockID == "" || src == "" {
		return nil, fmt.Errorf("blockId and src are required")
	}
	alt, _ := args["alt"].(string)
	caption, _ := args["caption"].(string)
	width := int(getFloat(args, "width", 0))
	if err := s.blocks.SetImageMeta(ctx, blockID, src, alt, caption, width); err != nil {
		return nil, fmt.Errorf("set image meta: %w", err)
	}
	return textResult(fmt.Sprintf("Image metadata of %s updated", blockID)), nil
}

func (s *Server) handleSetNotesFlag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	isNotes, _ := args["isNotes"].(bool)
	if err := s.blocks.SetNotesFlag(ctx, blockID, isNotes); err != nil {
		return nil, fmt.Errorf("set notes flag: %w", err)
	}
	return textResult(fmt.Sprintf("Notes flag of %s set to %t", blockID, isNotes)), nil
}

// ── Helper types ───────────────────────────────────────────

type blockSummary struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	SortOrder       float64 `json:"sortOrder"`
	ParentID        string  `json:"parentId,omitempty"`
	HeadingLevel    int     `json:"headingLevel,omitempty"`
	Status          string  `json:"status,omitempty"`
	WordCount       int     `json:"wordCount"`
	IsBibliography  bool    `json:"isBibliography,omitempty"`
	IsPseudoSection bool    `json:"isPseudoSection,omitempty"`
	IsNotes         bool    `json:"isNotes,omitempty"`
	Preview         string  `json:"preview"`
}

func summarizeBlock(b domain.Block) blockSummary {
	preview := b.TextContent
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return blockSummary{
		ID:              b.ID,
		Type:            string(b.Type),
		SortOrder:       b.SortOrder,
		ParentID:        b.ParentID,
		HeadingLevel:    b.HeadingLevel,
		Status:          string(b.Status),
		WordCount:       b.WordCount,
		IsBibliography:  b.IsBibliography,
		IsPseudoSection: b.IsPseudoSection,
		IsNotes:         b.IsNotes,
		Preview:         preview,
	}
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
