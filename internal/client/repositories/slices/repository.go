package slices

import "context"

// Repository reads and writes slice documents by key.
type Repository interface {
	// Get returns the stored document, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set upserts a single document.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany upserts a batch of documents atomically.
	SetMany(ctx context.Context, docs map[string][]byte) error

	// Delete removes a document; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every stored document.
	List(ctx context.Context) (map[string][]byte, error)
}
