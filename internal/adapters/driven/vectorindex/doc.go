// Package vectorindex implements driven.VectorIndex with three strategies:
//
//   - Flat: exact brute-force scan, the reference for correctness
//   - HNSW: hierarchical navigable small world graph, approximate
//   - Hybrid: wraps Flat or HNSW and filters by metadata after retrieval
//
// Every strategy stages adds until Commit, applies removes immediately,
// serialises mutations behind a single writer lock and orders equal
// distances by ascending item ID. Save and Load persist an index behind
// a versioned header through a driven.BlobStore.
package vectorindex
