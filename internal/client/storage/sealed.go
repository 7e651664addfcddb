package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/reviewdesk/internal/cryptox"
)

// sealSalt domain-separates the store key from other uses of the device secret.
var sealSalt = []byte("reviewdesk/token-store/v1")

// SealedBackend encrypts every value with AES-GCM before handing it to the
// wrapped backend. Keys stay in clear text so legacy cleanup can address them.
type SealedBackend struct {
	inner Backend
	key   []byte
}

// NewSealedBackend derives the AES key from the device secret.
func NewSealedBackend(inner Backend, deviceSecret []byte) *SealedBackend {
	return &SealedBackend{inner: inner, key: cryptox.DeriveMasterKey(deviceSecret, sealSalt)}
}

func (s *SealedBackend) Name() string { return s.inner.Name() + "+sealed" }

func (s *SealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(sealed, s.key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return plain, nil
}

func (s *SealedBackend) SetMany(ctx context.Context, values map[string][]byte) error {
	sealed := make(map[string][]byte, len(values))
	for k, v := range values {
		ct, err := cryptox.Seal(v, s.key)
		if err != nil {
			return fmt.Errorf("seal %s: %w", k, err)
		}
		sealed[k] = ct
	}
	return s.inner.SetMany(ctx, sealed)
}

func (s *SealedBackend) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}
