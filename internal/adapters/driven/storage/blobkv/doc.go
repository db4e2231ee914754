// Package blobkv layers the checkpoint and content stores over any
// driven.BlobStore, so that an object store alone can back every
// persistence port.
//
// Key layout:
//
//	checkpoints/<execution>/<sequence>.json   checkpoint bodies
//	checkpoint-ids/<checkpoint>               pointer to the body key
//	contents/<escaped id>.json                content bodies
//
// Writes are not transactional across keys. Checkpoints of one execution
// have a single writer, the engine's run loop, which makes that sufficient.
package blobkv
