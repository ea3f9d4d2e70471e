package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Sizes in random bytes. Encoded lengths are for base64url without padding.
const (
	// TokenSize128 is used for OAuth2 state and OIDC nonce values (22 chars).
	TokenSize128 = 16
	// TokenSize256 is used for PKCE verifiers and generated secrets (43 chars),
	// the shortest verifier RFC 7636 allows.
	TokenSize256 = 32
)

// GenerateToken returns size random bytes encoded as base64url, which only
// uses characters from the RFC 7636 unreserved set.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is for start-up, where a broken random source is fatal.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

// SignInSecrets are the per-attempt values of an authorization-code flow.
type SignInSecrets struct {
	State    string
	Nonce    string
	Verifier string
}

// NewSignInSecrets draws fresh state, nonce and PKCE verifier values.
func NewSignInSecrets() (SignInSecrets, error) {
	var (
		s   SignInSecrets
		err error
	)
	if s.State, err = GenerateToken(TokenSize128); err != nil {
		return SignInSecrets{}, fmt.Errorf("state: %w", err)
	}
	if s.Nonce, err = GenerateToken(TokenSize128); err != nil {
		return SignInSecrets{}, fmt.Errorf("nonce: %w", err)
	}
	if s.Verifier, err = GenerateToken(TokenSize256); err != nil {
		return SignInSecrets{}, fmt.Errorf("code verifier: %w", err)
	}
	return s, nil
}

// FingerprintToken returns the SHA-256 of a token, base64url encoded
// (43 chars). Session stores keep the fingerprint of the current refresh
// token next to the sealed value so rotation can be compared without
// decrypting.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
