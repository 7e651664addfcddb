package metadata

import (
	"context"
)

// Repository is a byte-valued key/value table. Get returns (nil, nil) when
// the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}
