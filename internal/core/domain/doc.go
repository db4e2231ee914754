// Package domain defines the core entities for boltindex.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Content: Caller-owned bytes with a modality tag
//   - ContentChunk: A bounded view into a Content
//   - Embedding: A fused structural and semantic vector
//   - IndexEntry, SearchHit: What a vector index stores and returns
//   - ProcessingPlan, ExecutionState, Checkpoint: Resumable execution
//   - Requirements, ResourceUsage: Resource coordinator accounting
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
