package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// PKCEChallengeS256 computes the S256 code challenge for a verifier (RFC 7636).
func PKCEChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
