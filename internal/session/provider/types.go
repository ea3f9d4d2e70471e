package provider

import (
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
)

// TokenResponse is the identity provider's token endpoint payload. Lifetimes
// are kept untyped so a provider sending a string or a float can't be
// mistaken for a valid integer lifetime.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        any    `json:"expires_in,omitempty"`
	RefreshExpiresIn any    `json:"refresh_expires_in,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// AuthorizationResult is what the sign-in redirect hands back once the
// authorization code has been exchanged and the ID token verified.
type AuthorizationResult struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        any
	RefreshExpiresIn any
	IDToken          string
	Claims           domain.IdentityClaims
}

// Refreshed is the outcome of a successful refresh exchange. RefreshToken is
// empty when the provider did not rotate; the caller keeps the old one.
type Refreshed struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	IDToken               string
}

// Rotated reports whether the provider issued a new refresh token.
func (r Refreshed) Rotated() bool { return r.RefreshToken != "" }

// Merge applies r on top of the previous pair. The previous refresh token and
// its expiry survive when the provider did not rotate.
func (r Refreshed) Merge(prev domain.TokenPair) domain.TokenPair {
	next := domain.TokenPair{
		AccessToken:           r.AccessToken,
		RefreshToken:          prev.RefreshToken,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: prev.RefreshTokenExpiresAt,
	}
	if r.Rotated() {
		next.RefreshToken = r.RefreshToken
		next.RefreshTokenExpiresAt = r.RefreshTokenExpiresAt
	}
	return next
}
