package sessionsdk

import (
	"slices"
	"time"
)

// CookieName is the session cookie the service issues.
const CookieName = "portal_session"

// ErrorMarker values a Session may carry.
const (
	RefreshTokenError = "RefreshTokenError"
)

// Address is the postal address of a Profile.
type Address struct {
	Formatted     string `json:"formatted,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country,omitempty"`
}

// Profile is the signed-in user as asserted by the identity provider.
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

// Session is the Projected Session returned by GET /v1/session.
type Session struct {
	User                 Profile   `json:"user"`
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`

	// Error is empty for a usable session.
	Error string `json:"error,omitempty"`
}

// Errored reports whether the session has been terminated by the service.
func (s *Session) Errored() bool { return s.Error != "" }

// InGroup reports whether the user belongs to group.
func (s *Session) InGroup(group string) bool {
	return slices.Contains(s.User.Groups, group)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Store indicates the session store connection status
	Store string `json:"store"`
}
