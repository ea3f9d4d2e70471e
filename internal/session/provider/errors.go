package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingRefreshToken is fatal; the session can only be signed out.
	ErrMissingRefreshToken = errors.New("provider: missing refresh token")

	// ErrProviderRejected matches every *RejectedError.
	ErrProviderRejected = errors.New("provider: rejected")

	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("provider: network failure")

	// ErrMalformedResponse is returned when a 2xx body can't be used.
	ErrMalformedResponse = errors.New("provider: malformed token response")

	// ErrInvalidAuthorization is returned for a sign-in result missing the
	// access token or subject.
	ErrInvalidAuthorization = errors.New("provider: invalid authorization result")

	// ErrNonceMismatch is returned when the ID token was minted for another
	// sign-in attempt.
	ErrNonceMismatch = errors.New("provider: id token nonce mismatch")
)

// OAuth2 error codes (RFC 6749 section 5.2) the session cares about.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidClient  = "invalid_client"
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeServerError    = "server_error"
)

// OAuth2Error is the standard error body of a token endpoint.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// RejectedError is a non-2xx answer from the token endpoint. Body is kept for
// diagnostics and must never be written back to an end user.
type RejectedError struct {
	StatusCode int
	Body       []byte
	OAuth2     *OAuth2Error
}

func (e *RejectedError) Error() string {
	if e.OAuth2 != nil {
		return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.OAuth2.Code)
	}
	return fmt.Sprintf("token request failed with status %d", e.StatusCode)
}

func (e *RejectedError) Is(target error) bool { return target == ErrProviderRejected }

// Reason is a short, log-safe label for the rejection.
func (e *RejectedError) Reason() string {
	if e.OAuth2 != nil && e.OAuth2.Code != "" {
		return e.OAuth2.Code
	}
	return http.StatusText(e.StatusCode)
}

// parseErrorResponse builds a RejectedError, recognising RFC 6749 bodies.
func parseErrorResponse(status int, body []byte) *RejectedError {
	rej := &RejectedError{StatusCode: status, Body: body}

	var oe OAuth2Error
	if err := json.Unmarshal(body, &oe); err == nil && oe.Code != "" {
		rej.OAuth2 = &oe
	}
	return rej
}

// Reason classifies any exchange error into a short label for logs and
// metrics.
func Reason(err error) string {
	var rej *RejectedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingRefreshToken):
		return "missing_refresh_token"
	case errors.As(err, &rej):
		return "rejected"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "unknown"
	}
}
