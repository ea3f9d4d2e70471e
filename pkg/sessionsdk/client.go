package sessionsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the session service on behalf of a signed-in user whose
// cookie it forwards.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a session service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetSession reads the Projected Session for the cookie. A session carrying
// the error marker is returned together with ErrSignedOut so callers can
// still show the stale profile.
func (c *Client) GetSession(ctx context.Context, cookie string) (*Session, error) {
	return c.session(ctx, http.MethodGet, "/v1/session", cookie)
}

// UpdateSession forces the service to refresh the session now, re-syncing
// the profile from the identity provider.
func (c *Client) UpdateSession(ctx context.Context, cookie string) (*Session, error) {
	return c.session(ctx, http.MethodPost, "/v1/session/update", cookie)
}

// SignOut terminates the session. Signing out an already terminated session
// succeeds.
func (c *Client) SignOut(ctx context.Context, cookie string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/signout", cookie)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service is ready.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) session(ctx context.Context, method, path, cookie string) (*Session, error) {
	if cookie == "" {
		return nil, ErrSignedOut
	}

	resp, err := c.doRequest(ctx, method, path, cookie)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := decodeJSON(resp, &sess, http.StatusOK); err != nil {
		return nil, err
	}
	if sess.Errored() {
		return &sess, ErrSignedOut
	}
	return &sess, nil
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// doRequest sends a JSON API request, forwarding the session cookie when
// one is given.
func (c *Client) doRequest(ctx context.Context, method, path, cookie string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// decodeJSON decodes a JSON response into the target interface.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatusNoContent returns a typed error if the response status is not 204 No Content.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, bodyBytes)
	}
	return nil
}
