// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - VectorIndex: Vector storage and search (flat, hnsw, hybrid)
//   - BlobStore: Byte-oriented durable storage for index files
//   - CheckpointStore: Append-only checkpoint persistence
//   - ContentStore: Durable content for resumed executions
//   - TextEmbedder: Turns oracle responses into vectors
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Oracle: Language-understanding model. Without it every embedding is
//     structural-only and marked degraded.
//   - PromptStore: User-editable prompt templates. Defaults are embedded.
//   - ContentSource: Resolves content IDs for built-in steps.
//   - NormaliserRegistry: Converts rich formats to text while loading files.
package driven
