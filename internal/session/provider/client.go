package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/expiry"
)

// DefaultTimeout bounds a single round trip to the token endpoint.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a token endpoint response is read.
const maxBodyBytes = 1 << 20

// ClientConfig configures a Client.
type ClientConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	// HTTPClient defaults to a client with DefaultTimeout. A client without
	// a timeout is given one.
	HTTPClient *http.Client

	// Expiry defaults to expiry.New().
	Expiry *expiry.Calculator
}

// Client talks to the identity provider's token endpoint. It is stateless
// and safe for concurrent use.
type Client struct {
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client
	expiry       expiry.Calculator
}

// NewClient creates a token exchange client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	} else if hc.Timeout == 0 {
		cp := *hc
		cp.Timeout = DefaultTimeout
		hc = &cp
	}

	calc := expiry.New()
	if cfg.Expiry != nil {
		calc = *cfg.Expiry
	}

	return &Client{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         hc,
		expiry:       calc,
	}
}

// HTTPClient returns the client used for provider round trips, so the OIDC
// code flow shares the same timeout.
func (c *Client) HTTPClient() *http.Client { return c.http }

// ExchangeAuthorizationResult turns the sign-in result into a token pair with
// absolute expiry instants plus the identity claims. It makes no network
// call.
func (c *Client) ExchangeAuthorizationResult(res AuthorizationResult) (domain.TokenPair, domain.IdentityClaims, error) {
	if res.AccessToken == "" || res.Claims.Subject == "" {
		return domain.TokenPair{}, domain.IdentityClaims{}, ErrInvalidAuthorization
	}

	pair := domain.TokenPair{
		AccessToken:           res.AccessToken,
		RefreshToken:          res.RefreshToken,
		AccessTokenExpiresAt:  c.expiry.ToAbsolute(expiry.LifetimeFrom(res.ExpiresIn)),
		RefreshTokenExpiresAt: c.refreshExpiry(res.RefreshExpiresIn),
	}
	return pair, res.Claims, nil
}

// ExchangeRefreshToken performs a single refresh_token grant. It never
// retries; the caller owns retry policy.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (Refreshed, error) {
	if refreshToken == "" {
		return Refreshed{}, ErrMissingRefreshToken
	}

	data := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	tok, err := c.requestToken(ctx, data)
	if err != nil {
		return Refreshed{}, err
	}

	return Refreshed{
		AccessToken:           tok.AccessToken,
		RefreshToken:          tok.RefreshToken,
		AccessTokenExpiresAt:  c.expiry.ToAbsolute(expiry.LifetimeFrom(tok.ExpiresIn)),
		RefreshTokenExpiresAt: c.refreshExpiry(tok.RefreshExpiresIn),
		IDToken:               tok.IDToken,
	}, nil
}

// refreshExpiry leaves the instant unset when the provider does not report a
// refresh lifetime at all; a present but unusable value fails safe to Epoch.
func (c *Client) refreshExpiry(v any) time.Time {
	if v == nil {
		return time.Time{}
	}
	return c.expiry.ToAbsolute(expiry.LifetimeFrom(v))
}

func (c *Client) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.tokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var tok TokenResponse
	if err := dec.Decode(&tok); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token", ErrMalformedResponse)
	}

	return &tok, nil
}
