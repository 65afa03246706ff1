package port

import "context"

// Cache is a string-keyed byte store without TTL, shared by all workers.
type Cache interface {
	// Get returns the value and true, or nil and false if the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
