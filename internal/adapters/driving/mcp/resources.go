package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for boltindex resources.
	uriScheme = "boltindex://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "indexes",
		Name:        "indexes",
		Description: "Open vector indexes and their statistics",
		MIMEType:    "application/json",
	}, s.handleIndexesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "executions",
		Name:        "executions",
		Description: "Known executions and their status",
		MIMEType:    "application/json",
	}, s.handleExecutionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "executions/{executionId}",
		Name:        "execution",
		Description: "Full state of one execution",
		MIMEType:    "application/json",
	}, s.handleExecutionResource)
}

// handleIndexesResource returns statistics for every open index.
func (s *Server) handleIndexesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats := []domain.IndexStats{}
	if s.ports.Indexes != nil {
		for _, name := range s.ports.Indexes.Names() {
			st, err := s.ports.Indexes.Stats(name)
			if err != nil {
				continue
			}
			stats = append(stats, st)
		}
	}
	return jsonResource(req.Params.URI, stats)
}

// handleExecutionsResource returns a summary of every execution.
func (s *Server) handleExecutionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Engine == nil {
		return jsonResource(req.Params.URI, []ExecutionOutput{})
	}
	states, err := s.ports.Engine.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	out := make([]ExecutionOutput, len(states))
	for i := range states {
		out[i] = executionOutput(&states[i], false)
	}
	return jsonResource(req.Params.URI, out)
}

// handleExecutionResource returns the full state of one execution.
func (s *Server) handleExecutionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Engine == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractExecutionID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	state, err := s.ports.Engine.Status(ctx, id)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResource(req.Params.URI, state)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractExecutionID extracts the execution ID from a URI like boltindex://executions/{executionId}.
func extractExecutionID(uri string) string {
	const prefix = uriScheme + "executions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
