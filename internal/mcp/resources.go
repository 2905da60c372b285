package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── manuscript://projects ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"manuscript://projects",
		"All Projects",
		mcp.WithMIMEType("application/json"),
	), s.handleProjectsResource)

	// ── manuscript://project/{projectId}/outline ───────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"manuscript://project/{projectId}/outline",
			"Project Outline",
		),
		s.handleOutlineResource,
	)

	// ── manuscript://project/{projectId}/document ──────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"manuscript://project/{projectId}/document",
			"Project Document",
		),
		s.handleDocumentResource,
	)
}

func (s *Server) handleProjectsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projects, err := s.projects.ListProjects()
	if err != nil {
		return nil, err
	}

	type projectSummary struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	var summaries []projectSummary
	for _, p := range projects {
		summaries = append(summaries, projectSummary{ID: p.ID, Title: p.Title})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "manuscript://projects",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleOutlineResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	projectID := projectIDFromURI(uri, "/outline")
	if projectID == "" {
		return nil, fmt.Errorf("could not extract projectId from URI: %s", uri)
	}

	outline, err := s.outline.Outline(projectID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(outline, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	projectID := projectIDFromURI(uri, "/document")
	if projectID == "" {
		return nil, fmt.Errorf("could not extract projectId from URI: %s", uri)
	}

	doc, err := s.syncSvc.ExportDocument(projectID, false)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     doc,
		},
	}, nil
}

// projectIDFromURI extracts the id from "manuscript://project/{id}<suffix>".
func projectIDFromURI(uri, suffix string) string {
	rest, ok := strings.CutPrefix(uri, "manuscript://project/")
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok {
		return ""
	}
	return id
}
