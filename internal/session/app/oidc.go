package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/aussiebroadwan/portal/internal/session/provider"
)

const oidcEnvconfigPrefix = "OIDC"

// OIDCConfig is the client registration at the identity provider.
type OIDCConfig struct {
	// ProviderURL is the issuer; discovery is read from
	// {ProviderURL}/.well-known/openid-configuration.
	ProviderURL  string   `envconfig:"PROVIDER_URL" required:"true"`
	ClientID     string   `envconfig:"CLIENT_ID" required:"true"`
	ClientSecret string   `envconfig:"CLIENT_SECRET" required:"true"`
	RedirectURL  string   `envconfig:"REDIRECT_URL" required:"true"`
	Scopes       []string `envconfig:"SCOPES"`
}

// LoadOIDCConfig reads OIDC_* environment variables.
func LoadOIDCConfig() (OIDCConfig, error) {
	c := OIDCConfig{}
	if err := envconfig.Process(oidcEnvconfigPrefix, &c); err != nil {
		return OIDCConfig{}, fmt.Errorf("error getting oidc configuration from environment: %w", err)
	}
	switch {
	case c.ProviderURL == "":
		return OIDCConfig{}, errors.New("OIDC_PROVIDER_URL must not be empty")
	case c.ClientID == "":
		return OIDCConfig{}, errors.New("OIDC_CLIENT_ID must not be empty")
	case c.ClientSecret == "":
		return OIDCConfig{}, errors.New("OIDC_CLIENT_SECRET must not be empty")
	}
	if !strings.HasSuffix(c.RedirectURL, "/v1/auth/callback") {
		return OIDCConfig{}, errors.New("OIDC_REDIRECT_URL must point at /v1/auth/callback")
	}
	return c, nil
}

// discoverProvider resolves the provider metadata once at start-up.
func discoverProvider(ctx context.Context, c OIDCConfig, hc *http.Client) (*provider.Authenticator, *provider.Client, error) {
	return provider.Discover(ctx, provider.Settings{
		IssuerURL:    c.ProviderURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
	}, hc)
}
