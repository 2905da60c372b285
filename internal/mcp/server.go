package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"

	"manuscript/internal/domain"
	"manuscript/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for the manuscript engine. It exposes tools,
// resources, and prompts so AI agents can read and edit documents.
type Server struct {
	mcp *server.MCPServer

	// Services (injected from app layer)
	projects *service.ProjectService
	blocks   *service.BlockService
	syncSvc  *service.SyncService
	outline  *service.OutlineService

	// Active project context (set by set_active_project tool)
	activeProjectID string
}

// Deps holds the services passed from the app layer to the MCP server.
type Deps struct {
	Projects *service.ProjectService
	Blocks   *service.BlockService
	Sync     *service.SyncService
	Outline  *service.OutlineService
}

// New creates and configures an MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		projects: deps.Projects,
		blocks:   deps.Blocks,
		syncSvc:  deps.Sync,
		outline:  deps.Outline,
	}

	s.mcp = server.NewMCPServer(
		"manuscript-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	// Phase 1: Core document access
	s.registerProjectTools()
	s.registerSyncTools()
	s.registerResources()

	// Phase 2: Structure and metadata
	s.registerOutlineTools()
	s.registerBlockTools()

	// Phase 3: Safety nets
	s.registerSnapshotTools()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// resolveProjectID returns the projectId from tool args or falls back to
// the active project.
func (s *Server) resolveProjectID(args map[string]any) (string, error) {
	if pid, ok := args["projectId"].(string); ok && pid != "" {
		return pid, nil
	}
	if s.activeProjectID != "" {
		return s.activeProjectID, nil
	}
	return "", fmt.Errorf("no projectId provided and no active project set (use set_active_project first)")
}

// getBlockForTool retrieves a block and validates it exists.
func (s *Server) getBlockForTool(args map[string]any) (*domain.Block, error) {
	blockID, ok := args["blockId"].(string)
	if !ok || blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	return s.blocks.GetBlock(blockID)
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func boolPtr(v bool) *bool { return &v }
