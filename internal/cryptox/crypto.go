// Package cryptox holds the primitives behind the sealed credential store:
// argon2id key derivation, AES-GCM sealing and the on-disk device key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/reviewdesk/internal/common"
	"golang.org/x/crypto/argon2"
)

// DeviceKeySize is the length of the random secret kept in the device key file.
const DeviceKeySize = 32

// ErrMalformedCiphertext is returned by Open when the input is shorter than a nonce.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// DeriveMasterKey stretches secret with argon2id into a 32-byte AES-256 key.
func DeriveMasterKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key. The random nonce is
// prepended to the returned ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ns := aesgcm.NonceSize()
	if len(sealed) < ns {
		return nil, ErrMalformedCiphertext
	}
	return aesgcm.Open(nil, sealed[:ns], sealed[ns:], nil)
}

// LoadOrCreateKeyFile returns the device secret stored at path, creating the
// file with a fresh random secret (mode 0600) when it does not exist.
func LoadOrCreateKeyFile(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil {
		if len(secret) != DeviceKeySize {
			return nil, fmt.Errorf("device key %s: unexpected size %d", path, len(secret))
		}
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir for device key: %w", err)
	}
	secret = common.GenerateRandByteArray(DeviceKeySize)
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("write device key: %w", err)
	}
	return secret, nil
}
