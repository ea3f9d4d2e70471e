package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key derivation labels. Each purpose gets an independent key from the same
// root secret.
const (
	PurposeCookieSigning = "portal/session-cookie/v1"
	PurposeTokenSealing  = "portal/token-sealing/v1"
)

var ErrWeakSecret = errors.New("cryptox: root secret must be at least 32 bytes")

// DeriveKey expands the root secret into a size-byte key bound to purpose
// using HKDF-SHA256.
func DeriveKey(secret []byte, purpose string, size int) ([]byte, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	if size <= 0 {
		return nil, fmt.Errorf("key size must be positive, got %d", size)
	}

	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
