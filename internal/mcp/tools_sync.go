package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"manuscript/internal/domain"
	"manuscript/internal/markdown"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSyncTools() {
	// ── apply_diff ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("apply_diff",
		mcp.WithDescription("Apply a batch of block edits in one transaction. The diff is a JSON object {deletes?: [blockId, ...], updates?: [{id, textContent?, markdown?, headingLevel?}, ...], inserts?: [{tempId, type, markdown?, textContent?, headingLevel?, afterBlockId?}, ...]}. Inserts use caller-chosen tempIds, which may also appear in afterBlockId; the result maps each tempId to its permanent id."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("diff", mcp.Description("JSON diff object"), mcp.Required()),
	), s.handleApplyDiff)

	// ── replace_document ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("replace_document",
		mcp.WithDescription("Replace a project's whole document with new markdown. Sections whose titles survive keep their ids and metadata; a snapshot is taken first."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("document", mcp.Description("Full markdown document"), mcp.Required()),
	), s.handleReplaceDocument)

	// ── replace_range ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("replace_range",
		mcp.WithDescription("Replace the blocks whose sort order falls in [start, end) with newly parsed markdown. Use get_section to obtain a section's bounds."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithNumber("start", mcp.Description("Inclusive lower sort order bound"), mcp.Required()),
		mcp.WithNumber("end", mcp.Description("Exclusive upper sort order bound"), mcp.Required()),
		mcp.WithString("document", mcp.Description("Markdown replacing the range"), mcp.Required()),
	), s.handleReplaceRange)

	// ── export_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_document",
		mcp.WithDescription("Serialize a project's document to markdown"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithBoolean("excludeNotes", mcp.Description("Omit sections flagged as notes")),
	), s.handleExportDocument)

	// ── get_section ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_section",
		mcp.WithDescription("Read one section: its markdown plus the [start, end) sort order bounds to pass back to replace_range"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("leaderId", mcp.Description("ID of the section's leader block"), mcp.Required()),
	), s.handleGetSection)
}

func (s *Server) handleApplyDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	diffJSON, _ := args["diff"].(string)
	if diffJSON == "" {
		return nil, fmt.Errorf("diff is required")
	}

	var diff domain.BlockDiff
	if err := json.Unmarshal([]byte(diffJSON), &diff); err != nil {
		return nil, fmt.Errorf("parse diff JSON: %w", err)
	}

	idMap, err := s.syncSvc.ApplyDiff(ctx, projectID, &diff)
	if err != nil {
		return nil, fmt.Errorf("apply diff: %w", err)
	}
	return jsonResult(map[string]any{"idMap": idMap})
}

func (s *Server) handleReplaceDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	doc, _ := args["document"].(string)

	if err := s.syncSvc.ReplaceDocument(ctx, projectID, doc); err != nil {
		return nil, fmt.Errorf("replace document: %w", err)
	}
	return textResult(fmt.Sprintf("Document of project %s replaced", projectID)), nil
}

func (s *Server) handleReplaceRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	if _, ok := args["start"].(float64); !ok {
		return nil, fmt.Errorf("start is required")
	}
	if _, ok := args["end"].(float64); !ok {
		return nil, fmt.Errorf("end is required")
	}
	start := getFloat(args, "start", 0)
	end := getFloat(args, "end", 0)
	doc, _ := args["document"].(string)

	if err := s.syncSvc.ReplaceRange(ctx, projectID, start, end, doc); err != nil {
		return nil, fmt.Errorf("replace range: %w", err)
	}
	return textResult(fmt.Sprintf("Range [%v, %v) of project %s replaced", start, end, projectID)), nil
}

func (s *Server) handleExportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	excludeNotes, _ := args["excludeNotes"].(bool)

	doc, err := s.syncSvc.ExportDocument(projectID, excludeNotes)
	if err != nil {
		return nil, fmt.Errorf("export document: %w", err)
	}
	return textResult(doc), nil
}

func (s *Server) handleGetSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	projectID, err := s.resolveProjectID(args)
	if err != nil {
		return nil, err
	}
	leaderID, _ := args["leaderId"].(string)
	if leaderID == "" {
		return nil, fmt.Errorf("leaderId is required")
	}

	sections, err := s.outline.Sections(projectID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	for i, sec := range sections {
		if sec.Leader == nil || sec.Leader.ID != leaderID {
			continue
		}
		blocks := append([]domain.Block{*sec.Leader}, sec.Body...)
		return jsonResult(map[string]any{
			"leaderId": leaderID,
			"title":    sec.Leader.Title(),
			"start":    sec.Leader.SortOrder,
			"end":      sectionEnd(sections, i),
			"markdown": markdown.Serialize(blocks),
		})
	}
	return nil, fmt.Errorf("no section led by block %s", leaderID)
}

// sectionEnd returns the exclusive sort order bound of section i: the next
// leader's key, or just past the last block for the final section.
func sectionEnd(sections []domain.Section, i int) float64 {
	for _, next := range sections[i+1:] {
		if next.Leader != nil {
			return next.Leader.SortOrder
		}
	}
	sec := sections[i]
	last := sec.Leader.SortOrder
	if n := len(sec.Body); n > 0 {
		last = sec.Body[n-1].SortOrder
	}
	return last + 1
}
