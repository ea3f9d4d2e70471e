package domain

import "time"

// TokenPair is the credential half of a Session Record. Expiry instants are
// absolute and already include the safety margin.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// AccessTokenValid reports whether the access token is still usable at now.
func (p TokenPair) AccessTokenValid(now time.Time) bool {
	return now.Before(p.AccessTokenExpiresAt)
}
