package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("drift_report",
		mcp.WithPromptDescription("Summarize how each section tracks against its word goal and writing status"),
		mcp.WithArgument("projectId",
			mcp.ArgumentDescription("Project to report on"),
			mcp.RequiredArgument(),
		),
	), s.handleDriftReportPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("revise_section",
		mcp.WithPromptDescription("Revise one section in place using the zoomed range workflow"),
		mcp.WithArgument("leaderId",
			mcp.ArgumentDescription("Leader block of the section to revise"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("instruction",
			mcp.ArgumentDescription("What to change in the section"),
			mcp.RequiredArgument(),
		),
	), s.handleReviseSectionPrompt)
}

func (s *Server) handleDriftReportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectID := req.Params.Arguments["projectId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Progress report for project %s", projectID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a progress report for project "%s". Follow these steps:

1. Call get_outline to fetch every section with its status, word count and word goal
2. For each section with a goal, compute how far ahead or behind it is
3. Flag sections still in "next" or "writing" while their neighbors are already "final"
4. Finish with a compact table: section title, status, words/goal, suggested next step

Keep the report under 300 words and do not edit any blocks.`, projectID),
				},
			},
		},
	}, nil
}

func (s *Server) handleReviseSectionPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	leaderID := req.Params.Arguments["leaderId"]
	instruction := req.Params.Arguments["instruction"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Revise the section led by %s", leaderID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Revise the section led by block %s as follows: %s. Follow these steps:

1. Call get_section with the leaderId to fetch the section's markdown and its [start, end) bounds
2. Rewrite the markdown per the instruction, keeping the leading heading line intact
3. Call replace_range with the same bounds and the rewritten markdown
4. Call get_outline and confirm the section's word count moved the way you expected

Touch nothing outside the returned bounds; other sections keep their ids and metadata.`, leaderID, instruction),
				},
			},
		},
	}, nil
}
