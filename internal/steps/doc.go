// Package steps provides the built-in processing step handlers and the
// registry the execution engine resolves plan steps through.
//
// Built-in kinds:
//   - chunk: split contents into chunk ranges
//   - embed: generate fused embeddings for chunks or whole contents
//   - index: stage embeddings into a named vector index and commit
//   - save_index: persist a named index to blob storage
//   - oracle: send a prompt to the oracle and keep its answer
//
// Step outputs are JSON and flow to dependents as inputs, so every
// handler here can be re-run from a checkpoint.
package steps
