package sessionsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes the service answers with.
const (
	ErrorCodeUnauthenticated = "unauthenticated"
	ErrorCodeRateLimited     = "rate_limited"
	ErrorCodeServerError     = "server_error"
)

// ErrSignedOut is returned when there is no usable session: the cookie is
// missing or stale, or the session carries the error marker.
var ErrSignedOut = errors.New("sessionsdk: signed out")

// APIError is a non-2xx response from the session service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("session service: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("session service: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Is lets a 401 match ErrSignedOut.
func (e *APIError) Is(target error) bool {
	return target == ErrSignedOut && e.StatusCode == http.StatusUnauthorized
}

// parseErrorResponse turns an error body into an *APIError, falling back to
// the status text when the body isn't ours.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
