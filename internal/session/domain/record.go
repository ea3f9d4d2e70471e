package domain

import "time"

// ErrorMarker is the terminal error flag of a Session Record.
type ErrorMarker string

const (
	// NoError is the zero marker.
	NoError ErrorMarker = ""

	// RefreshTokenError is set when a refresh exchange failed. It is one-way.
	RefreshTokenError ErrorMarker = "RefreshTokenError"
)

// Record is the durable per-principal session, keyed by Claims.Subject.
type Record struct {
	ID        string
	Claims    IdentityClaims
	Tokens    TokenPair
	Error     ErrorMarker
	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt is the absolute maximum session age, independent of token
	// expiry.
	ExpiresAt time.Time
}

// Subject returns the principal the record belongs to.
func (r Record) Subject() string { return r.Claims.Subject }

// Errored reports whether the record carries the terminal error marker.
func (r Record) Errored() bool { return r.Error != NoError }

// Expired reports whether the record has outlived the maximum session age.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
