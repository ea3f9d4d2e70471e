package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Settings describe the OIDC client registration.
type Settings struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// DefaultScopes are always requested. offline_access is what makes the
// provider hand out a refresh token.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}

// Authenticator runs the authorization-code leg of sign-in.
type Authenticator struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	http     *http.Client
}

// NewAuthenticator wires an already configured OAuth2 client and ID token
// verifier.
func NewAuthenticator(oauth *oauth2.Config, verifier *oidc.IDTokenVerifier, hc *http.Client) *Authenticator {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Authenticator{oauth: oauth, verifier: verifier, http: hc}
}

// Discover resolves the provider metadata and returns both halves of the
// provider integration: the sign-in Authenticator and the refresh Client.
func Discover(ctx context.Context, s Settings, hc *http.Client) (*Authenticator, *Client, error) {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	p, err := oidc.NewProvider(oidc.ClientContext(ctx, hc), s.IssuerURL)
	if err != nil {
		return nil, nil, fmt.Errorf("oidc discovery: %w", err)
	}

	scopes := append([]string{}, DefaultScopes...)
	for _, sc := range s.Scopes {
		if !slices.Contains(scopes, sc) {
			scopes = append(scopes, sc)
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint:     p.Endpoint(),
		RedirectURL:  s.RedirectURL,
		Scopes:       scopes,
	}

	client := NewClient(ClientConfig{
		TokenURL:     p.Endpoint().TokenURL,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		HTTPClient:   hc,
	})

	verifier := p.Verifier(&oidc.Config{ClientID: s.ClientID})
	return NewAuthenticator(oauthCfg, verifier, client.HTTPClient()), client, nil
}

// AuthCodeURL returns the provider URL to send the browser to.
func (a *Authenticator) AuthCodeURL(state, nonce, codeVerifier string) string {
	return a.oauth.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchange redeems the authorization code, verifies the ID token against the
// nonce issued with this sign-in attempt and decodes the identity claims.
func (a *Authenticator) Exchange(ctx context.Context, code, codeVerifier, nonce string) (AuthorizationResult, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http)

	tok, err := a.oauth.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return AuthorizationResult{}, parseErrorResponse(re.Response.StatusCode, re.Body)
		}
		return AuthorizationResult{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return AuthorizationResult{}, fmt.Errorf("%w: no id_token", ErrMalformedResponse)
	}

	idt, err := a.verifier.Verify(oidc.ClientContext(ctx, a.http), rawID)
	if err != nil {
		return AuthorizationResult{}, fmt.Errorf("verify id token: %w", err)
	}
	if idt.Nonce != nonce {
		return AuthorizationResult{}, ErrNonceMismatch
	}

	claims, err := decodeClaims(idt)
	if err != nil {
		return AuthorizationResult{}, err
	}

	return AuthorizationResult{
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		ExpiresIn:        tok.Extra("expires_in"),
		RefreshExpiresIn: tok.Extra("refresh_expires_in"),
		IDToken:          rawID,
		Claims:           claims,
	}, nil
}

// VerifyIDToken checks an ID token returned by a refresh and decodes its
// claims. Refreshed ID tokens carry no fresh nonce so none is checked.
func (a *Authenticator) VerifyIDToken(ctx context.Context, raw string) (domain.IdentityClaims, error) {
	idt, err := a.verifier.Verify(oidc.ClientContext(ctx, a.http), raw)
	if err != nil {
		return domain.IdentityClaims{}, fmt.Errorf("verify id token: %w", err)
	}
	return decodeClaims(idt)
}

func decodeClaims(idt *oidc.IDToken) (domain.IdentityClaims, error) {
	var c idTokenClaims
	if err := idt.Claims(&c); err != nil {
		return domain.IdentityClaims{}, fmt.Errorf("decode id token claims: %w", err)
	}
	if c.Subject == "" {
		c.Subject = idt.Subject
	}
	return c.toDomain(), nil
}
