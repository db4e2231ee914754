package driven

import "context"

// BlobStore is byte-oriented durable storage.
// Index files and, for some backends, checkpoints live here.
type BlobStore interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the data stored under key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}
