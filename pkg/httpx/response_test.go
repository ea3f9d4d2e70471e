package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestWantsHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	require.True(t, httpx.WantsHTML(req))

	req.Header.Set("Accept", "application/json")
	require.False(t, httpx.WantsHTML(req))
}

func TestSafeReturnTo(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/dashboard?tab=1": "/dashboard?tab=1",
		"https://evil.com": "/",
		"//evil.com":       "/",
		`/\evil.com`:        "/",
		"relative/path":    "/",
	}
	for in, want := range cases {
		require.Equal(t, want, httpx.SafeReturnTo(in), in)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteError(rec, http.StatusBadRequest, "invalid_request", "bad")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"invalid_request","error_description":"bad"}`, rec.Body.String())
}

func TestFirstParty(t *testing.T) {
	cases := map[string]bool{
		"same-origin": true,
		"none":        true,
		"same-site":   false,
		"cross-site":  false,
		"":            false,
	}
	for site, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/v1/auth/signout", nil)
		if site != "" {
			r.Header.Set("Sec-Fetch-Site", site)
		}
		require.Equal(t, want, httpx.FirstParty(r), site)
	}
}
