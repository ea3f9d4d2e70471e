package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/projector"
	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/internal/session/signout"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// SessionHandler serves the Projected Session. It is the only way the rest
// of the application sees session state.
type SessionHandler struct {
	Sessions *service.SessionService
	Trigger  *signout.Trigger
	Cookie   httpx.Cookie
}

// HandleRead godoc
//
//	@Summary		Read Session
//	@Description	Returns the Projected Session, refreshing the access token first if it has expired.
//	@Description	A session whose refresh failed is returned once with its stale profile and "error": "RefreshTokenError";
//	@Description	the session is terminated and the cookie cleared. Browser navigations are redirected to the sign-out page instead.
//	@Tags			Session
//	@Produce		json
//	@Security		SessionCookie
//	@Success		200	{object}	sessionsdk.Session	"Projected Session"
//	@Success		303	"Terminated session, browser navigation"
//	@Failure		401	{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		429	{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/session [get]
func (h *SessionHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.Sessions.Read)
}

// HandleUpdate godoc
//
//	@Summary		Update Session
//	@Description	Forces a refresh regardless of access token expiry and re-syncs the profile from the identity provider.
//	@Tags			Session
//	@Produce		json
//	@Security		SessionCookie
//	@Success		200	{object}	sessionsdk.Session	"Projected Session"
//	@Failure		401	{object}	httpx.ErrorResponse	"error, error_description"
//	@Failure		429	{object}	httpx.ErrorResponse	"error, error_description"
//	@Router			/v1/session/update [post]
func (h *SessionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.Sessions.Update)
}

func (h *SessionHandler) serve(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, service.Key) (domain.Record, error),
) {
	ctx := r.Context()
	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "no session")
		return
	}

	key := service.Key{Subject: claims.Subject, SessionID: claims.SID}
	rec, err := op(ctx, key)
	switch {
	case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrSessionExpired):
		h.Cookie.Clear(w)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "session ended")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("session read failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "session unavailable")
		return
	}

	ps := projector.Project(rec)
	if h.Trigger.Observe(w, r, key, ps) && httpx.WantsHTML(r) {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ps)
}
