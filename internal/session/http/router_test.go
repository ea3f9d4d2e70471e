package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/expiry"
	sessionhttp "github.com/aussiebroadwan/portal/internal/session/http"
	"github.com/aussiebroadwan/portal/internal/session/provider"
	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/internal/session/signout"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/memory"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/metricsx"
	"github.com/aussiebroadwan/portal/pkg/sessionsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeIDP plays the provider's authorization endpoint. It remembers the last
// flow it was sent so the callback can be simulated.
type fakeIDP struct {
	mu       sync.Mutex
	state    string
	nonce    string
	verifier string
	claims   domain.IdentityClaims
}

func (f *fakeIDP) AuthCodeURL(state, nonce, codeVerifier string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state, f.nonce, f.verifier = state, nonce, codeVerifier
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeIDP) Exchange(ctx context.Context, code, codeVerifier, nonce string) (provider.AuthorizationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code != "good-code" || codeVerifier != f.verifier || nonce != f.nonce {
		return provider.AuthorizationResult{}, &provider.RejectedError{StatusCode: http.StatusBadRequest}
	}
	return provider.AuthorizationResult{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresIn:    300,
		Claims:       f.claims,
	}, nil
}

type exchanger struct {
	calls atomic.Int32
	fail  atomic.Bool
	clk   *clock
}

func (e *exchanger) ExchangeRefreshToken(ctx context.Context, rt string) (provider.Refreshed, error) {
	n := e.calls.Add(1)
	if e.fail.Load() {
		return provider.Refreshed{}, &provider.RejectedError{
			StatusCode: http.StatusBadRequest,
			OAuth2:     &provider.OAuth2Error{Code: provider.ErrorCodeInvalidGrant},
		}
	}
	return provider.Refreshed{
		AccessToken:          "at-" + strconv.Itoa(int(n)+1),
		AccessTokenExpiresAt: e.clk.Now().Add(290 * time.Second),
	}, nil
}

type harness struct {
	router *sessionhttp.Router
	clk    *clock
	idp    *fakeIDP
	ex     *exchanger
	store  *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}
	st := memory.NewStore()
	ex := &exchanger{clk: clk}
	idp := &fakeIDP{claims: domain.IdentityClaims{
		Subject:  "user-1",
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Groups:   []string{"agency"},
		UserData: `{"theme":"dark"}`,
	}}

	signer, err := jwtx.NewCookieSigner(bytes.Repeat([]byte("k"), 32), "portal")
	require.NoError(t, err)

	svc := &service.SessionService{Store: st, Exchanger: ex, Now: clk.Now}
	cookies := sessionhttp.Cookies{
		Session: httpx.Cookie{Name: sessionsdk.CookieName},
		SignIn:  httpx.Cookie{Name: "portal_signin", Path: "/v1/auth"},
	}

	reg := prometheus.NewRegistry()
	r := sessionhttp.NewRouter(signer, "test", st, metricsx.New(reg), reg, slogx.Discard())
	r.SessionService = svc
	r.Authenticator = idp
	r.SignIns = provider.NewClient(provider.ClientConfig{
		Expiry: &expiry.Calculator{Now: clk.Now, Margin: expiry.DefaultMargin},
	})
	r.Trigger = &signout.Trigger{Sessions: svc, Cookie: cookies.Session}
	r.Cookies = cookies
	r.ApplyRoutes()

	return &harness{router: r, clk: clk, idp: idp, ex: ex, store: st}
}

func (h *harness) do(method, target string, cookies []*http.Cookie, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signIn walks the browser through both legs and returns the session cookie.
func (h *harness) signIn(t *testing.T, returnTo string) *http.Cookie {
	t.Helper()

	start := h.do(http.MethodGet, "/v1/auth/signin?return_to="+url.QueryEscape(returnTo), nil, "text/html")
	require.Equal(t, http.StatusFound, start.Code)
	require.True(t, strings.HasPrefix(start.Header().Get("Location"), "https://idp.example.com/authorize"))
	flow := cookieNamed(start, "portal_signin")
	require.NotNil(t, flow)

	h.idp.mu.Lock()
	state := h.idp.state
	h.idp.mu.Unlock()

	cb := h.do(http.MethodGet, "/v1/auth/callback?code=good-code&state="+url.QueryEscape(state),
		[]*http.Cookie{flow}, "text/html")
	require.Equal(t, http.StatusSeeOther, cb.Code)

	sess := cookieNamed(cb, sessionsdk.CookieName)
	require.NotNil(t, sess)
	require.NotEmpty(t, sess.Value)
	require.True(t, sess.HttpOnly)
	return sess
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionsdk.Session {
	t.Helper()
	var s sessionsdk.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func TestSignInFlow(t *testing.T) {
	h := newHarness(t)

	start := h.do(http.MethodGet, "/v1/auth/signin?return_to=/blog", nil, "")
	flow := cookieNamed(start, "portal_signin")
	state := h.idp.state

	cb := h.do(http.MethodGet, "/v1/auth/callback?code=good-code&state="+url.QueryEscape(state),
		[]*http.Cookie{flow}, "")
	require.Equal(t, http.StatusSeeOther, cb.Code)
	require.Equal(t, "/blog", cb.Header().Get("Location"))

	cleared := cookieNamed(cb, "portal_signin")
	require.NotNil(t, cleared)
	require.Equal(t, -1, cleared.MaxAge)

	rec, err := h.store.Sessions().Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "rt-1", rec.Tokens.RefreshToken)
	require.Equal(t, h.clk.Now().Add(290*time.Second), rec.Tokens.AccessTokenExpiresAt)
}

func TestSignInRejectsOpenRedirect(t *testing.T) {
	h := newHarness(t)

	start := h.do(http.MethodGet, "/v1/auth/signin?return_to="+url.QueryEscape("//evil.example.com"), nil, "")
	cb := h.do(http.MethodGet, "/v1/auth/callback?code=good-code&state="+url.QueryEscape(h.idp.state),
		[]*http.Cookie{cookieNamed(start, "portal_signin")}, "")
	require.Equal(t, http.StatusSeeOther, cb.Code)
	require.Equal(t, "/", cb.Header().Get("Location"))
}

func TestCallbackFailures(t *testing.T) {
	h := newHarness(t)

	start := h.do(http.MethodGet, "/v1/auth/signin", nil, "")
	flow := cookieNamed(start, "portal_signin")
	state := h.idp.state

	cases := map[string]struct {
		query   string
		cookies []*http.Cookie
		code    int
		errCode string
	}{
		"provider error": {query: "error=access_denied&state=" + state, cookies: []*http.Cookie{flow}, code: http.StatusBadRequest, errCode: "access_denied"},
		"missing cookie": {query: "code=good-code&state=" + state, code: http.StatusBadRequest, errCode: "invalid_request"},
		"state mismatch": {query: "code=good-code&state=other", cookies: []*http.Cookie{flow}, code: http.StatusBadRequest, errCode: "invalid_request"},
		"forged cookie":  {query: "code=good-code&state=" + state, cookies: []*http.Cookie{{Name: "portal_signin", Value: "x.y.z"}}, code: http.StatusBadRequest, errCode: "invalid_request"},
		"bad code":       {query: "code=bad-code&state=" + state, cookies: []*http.Cookie{flow}, code: http.StatusBadGateway, errCode: "sign_in_failed"},
		"missing code":   {query: "state=" + state, cookies: []*http.Cookie{flow}, code: http.StatusBadRequest, errCode: "invalid_request"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := h.do(http.MethodGet, "/v1/auth/callback?"+tc.query, tc.cookies, "")
			require.Equal(t, tc.code, rec.Code)

			var body httpx.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.errCode, body.Error)
			require.Nil(t, cookieNamed(rec, sessionsdk.CookieName))
		})
	}
}

func TestReadSession(t *testing.T) {
	h := newHarness(t)
	sess := h.signIn(t, "/")

	rec := h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotContains(t, rec.Body.String(), "rt-1")

	got := decodeSession(t, rec)
	require.Equal(t, "user-1", got.User.ID)
	require.Equal(t, "Ada Lovelace", got.User.Name)
	require.Equal(t, map[string]any{"theme": "dark"}, got.User.UserData)
	require.Equal(t, "at-1", got.AccessToken)
	require.Empty(t, got.Error)
	require.Zero(t, h.ex.calls.Load())

	// Past the access token expiry the read refreshes first.
	h.clk.Advance(5 * time.Minute)
	got = decodeSession(t, h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, ""))
	require.Equal(t, "at-2", got.AccessToken)
	require.Equal(t, int32(1), h.ex.calls.Load())
}

func TestReadSessionRequiresCookie(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/v1/session", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{{Name: sessionsdk.CookieName, Value: "garbage"}}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadSupersededSession(t *testing.T) {
	h := newHarness(t)
	first := h.signIn(t, "/")
	h.clk.Advance(time.Second)
	second := h.signIn(t, "/")

	rec := h.do(http.MethodGet, "/v1/session", []*http.Cookie{first}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, -1, cookieNamed(rec, sessionsdk.CookieName).MaxAge)

	rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{second}, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadErroredSessionForcesSignOut(t *testing.T) {
	t.Run("api consumer sees stale profile", func(t *testing.T) {
		h := newHarness(t)
		sess := h.signIn(t, "/")
		h.ex.fail.Store(true)
		h.clk.Advance(time.Hour)

		rec := h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "application/json")
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeSession(t, rec)
		require.Equal(t, sessionsdk.RefreshTokenError, got.Error)
		require.Equal(t, "Ada Lovelace", got.User.Name)
		require.Equal(t, -1, cookieNamed(rec, sessionsdk.CookieName).MaxAge)

		_, err := h.store.Sessions().Get(context.Background(), "user-1")
		require.Error(t, err)

		rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "application/json")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, int32(1), h.ex.calls.Load())
	})

	t.Run("browser is redirected", func(t *testing.T) {
		h := newHarness(t)
		sess := h.signIn(t, "/")
		h.ex.fail.Store(true)
		h.clk.Advance(time.Hour)

		rec := h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "text/html")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, signout.DefaultLandingPath, rec.Header().Get("Location"))
	})
}

func TestUpdateSession(t *testing.T) {
	h := newHarness(t)
	sess := h.signIn(t, "/")

	rec := h.do(http.MethodPost, "/v1/session/update", []*http.Cookie{sess}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "at-2", decodeSession(t, rec).AccessToken)
	require.Equal(t, int32(1), h.ex.calls.Load())

	rec = h.do(http.MethodGet, "/v1/session/update", []*http.Cookie{sess}, "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSignOut(t *testing.T) {
	h := newHarness(t)
	sess := h.signIn(t, "/")

	rec := h.do(http.MethodPost, "/v1/auth/signout", []*http.Cookie{sess}, "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, -1, cookieNamed(rec, sessionsdk.CookieName).MaxAge)

	// Repeating is harmless, with or without the cookie.
	rec = h.do(http.MethodPost, "/v1/auth/signout", []*http.Cookie{sess}, "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(http.MethodGet, "/v1/auth/signout", nil, "text/html")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, signout.DefaultLandingPath, rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignOutWithSupersededCookieKeepsNewerSession(t *testing.T) {
	h := newHarness(t)
	first := h.signIn(t, "/")
	h.clk.Advance(time.Second)
	second := h.signIn(t, "/")

	rec := h.do(http.MethodPost, "/v1/auth/signout", []*http.Cookie{first}, "application/json")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, -1, cookieNamed(rec, sessionsdk.CookieName).MaxAge)

	rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{second}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "at-1", decodeSession(t, rec).AccessToken)
}

func TestSignOutByGet(t *testing.T) {
	get := func(h *harness, sess *http.Cookie, site string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/signout", nil)
		req.AddCookie(sess)
		req.Header.Set("Accept", "text/html")
		if site != "" {
			req.Header.Set("Sec-Fetch-Site", site)
		}
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		return rec
	}

	for _, site := range []string{"cross-site", "same-site", ""} {
		t.Run("ignored from "+site, func(t *testing.T) {
			h := newHarness(t)
			sess := h.signIn(t, "/")

			rec := get(h, sess, site)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			require.Nil(t, cookieNamed(rec, sessionsdk.CookieName))

			rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "")
			require.Equal(t, http.StatusOK, rec.Code)
		})
	}

	t.Run("first-party navigation signs out", func(t *testing.T) {
		h := newHarness(t)
		sess := h.signIn(t, "/")

		rec := get(h, sess, "same-origin")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, signout.DefaultLandingPath, rec.Header().Get("Location"))
		require.Equal(t, -1, cookieNamed(rec, sessionsdk.CookieName).MaxAge)

		rec = h.do(http.MethodGet, "/v1/session", []*http.Cookie{sess}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSystemEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/livez", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/readyz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health sessionsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Checks.Store)

	rec = h.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `portal_http_requests_total{method="GET",route="GET /readyz",status="200"} 1`)
}
