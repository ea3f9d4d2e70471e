package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// SignInHandler runs the OIDC authorization-code flow. The state, nonce and
// PKCE verifier travel in a short-lived signed cookie so no server-side
// state is needed between the two legs.
type SignInHandler struct {
	Authenticator Authenticator
	SignIns       SignInConverter
	Sessions      *service.SessionService
	Signer        *jwtx.CookieSigner
	Cookies       Cookies
	TTL           time.Duration
}

// HandleStart godoc
//
//	@Summary		Start Sign-In
//	@Description	Starts the OIDC authorization-code flow (PKCE S256) and redirects to the identity provider.
//	@Tags			Auth
//	@Param			return_to	query	string	false	"Local path to land on once signed in"
//	@Success		302			"Redirect to the identity provider"
//	@Failure		429			{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		500			{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/signin [get]
func (h *SignInHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	secrets, err := cryptox.NewSignInSecrets()
	if err != nil {
		log.Error("failed to generate sign-in secrets", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "sign-in unavailable")
		return
	}

	now := time.Now()
	ttl := h.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSignInTTL
	}
	returnTo := httpx.SafeReturnTo(r.URL.Query().Get("return_to"))

	raw, err := h.Signer.Sign(jwtx.NewSignInClaims(secrets.State, secrets.Nonce, secrets.Verifier, returnTo, h.Signer.Issuer(), ttl, now))
	if err != nil {
		log.Error("failed to sign sign-in cookie", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "sign-in unavailable")
		return
	}
	h.Cookies.SignIn.Set(w, raw, now.Add(ttl))

	httpx.NoCache(w)
	http.Redirect(w, r, h.Authenticator.AuthCodeURL(secrets.State, secrets.Nonce, secrets.Verifier), http.StatusFound)
}

// HandleCallback godoc
//
//	@Summary		Sign-In Callback
//	@Description	Completes the authorization-code flow, creates the session and sets the session cookie.
//	@Description	Any session the user already had is superseded.
//	@Tags			Auth
//	@Param			code	query	string	true	"Authorization code"
//	@Param			state	query	string	true	"State echoed by the provider"
//	@Success		303		"Redirect to the page sign-in started from"
//	@Failure		400		{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		502		{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/callback [get]
func (h *SignInHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	// The sign-in cookie is single use whatever happens next.
	cookie, cookieErr := r.Cookie(h.Cookies.SignIn.Name)
	h.Cookies.SignIn.Clear(w)

	if e := q.Get("error"); e != "" {
		log.Info("sign-in refused by provider", slog.String("error", e))
		httpx.WriteError(w, http.StatusBadRequest, "access_denied", "sign-in was not completed")
		return
	}

	if cookieErr != nil || cookie.Value == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "sign-in expired, please try again")
		return
	}
	flow, err := h.Signer.Verify(cookie.Value, jwtx.AudienceSignIn)
	if err != nil {
		log.Warn("sign-in cookie rejected", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "sign-in expired, please try again")
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if code == "" || subtle.ConstantTimeCompare([]byte(state), []byte(flow.State)) != 1 {
		log.Warn("sign-in state mismatch")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "sign-in state mismatch")
		return
	}

	res, err := h.Authenticator.Exchange(ctx, code, flow.Verifier, flow.Nonce)
	if err != nil {
		log.Warn("authorization code exchange failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "sign_in_failed", "could not complete sign-in")
		return
	}

	pair, claims, err := h.SignIns.ExchangeAuthorizationResult(res)
	if err != nil {
		log.Warn("sign-in result rejected", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "sign_in_failed", "could not complete sign-in")
		return
	}

	rec, err := h.Sessions.SignIn(ctx, claims, pair)
	if err != nil {
		log.Error("failed to create session", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not complete sign-in")
		return
	}

	now := time.Now()
	raw, err := h.Signer.Sign(jwtx.NewSessionClaims(rec.Subject(), rec.ID, h.Signer.Issuer(), rec.ExpiresAt.Sub(now), now))
	if err != nil {
		log.Error("failed to sign session cookie", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not complete sign-in")
		return
	}
	h.Cookies.Session.Set(w, raw, rec.ExpiresAt)

	httpx.NoCache(w)
	http.Redirect(w, r, httpx.SafeReturnTo(flow.ReturnTo), http.StatusSeeOther)
}
