package domain

import "time"

// Profile is the externally visible shape of IdentityClaims.
type Profile struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	Birthdate     string         `json:"birthdate,omitempty"`
	Address       Address        `json:"address"`
	Gender        string         `json:"gender,omitempty"`
	Groups        []string       `json:"groups"`
	UserData      map[string]any `json:"user_data"`
}

// ProjectedSession is the read-only view handed to consumers. It never
// carries the refresh token.
type ProjectedSession struct {
	User                 Profile     `json:"user"`
	AccessToken          string      `json:"access_token"`
	AccessTokenExpiresAt time.Time   `json:"access_token_expires_at"`
	Error                ErrorMarker `json:"error,omitempty"`
}

// Errored reports whether consumers must be sent to sign-out.
func (p ProjectedSession) Errored() bool { return p.Error != NoError }
