package mcp

import (
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// PlanParser turns a YAML or JSON plan document into a validated plan.
type PlanParser func(data []byte, defaultID string) (domain.ProcessingPlan, error)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers queries. Required.
	Search driving.SearchService

	// Engine runs plans and reports execution state. Optional.
	Engine driving.ExecutionEngine

	// Indexes lists open indexes. Optional.
	Indexes driving.IndexService

	// ParsePlan is required for the run_plan tool.
	ParsePlan PlanParser
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
