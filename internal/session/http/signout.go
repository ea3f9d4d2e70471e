package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/internal/session/signout"
	"github.com/aussiebroadwan/portal/pkg/httpx"
)

// SignOutHandler serves voluntary sign-out. It always succeeds.
type SignOutHandler struct {
	Trigger *signout.Trigger
}

// ServeHTTP godoc
//
//	@Summary		Sign Out
//	@Description	Terminates the session and clears the session cookie. Idempotent.
//	@Description	A cookie from a superseded sign-in only clears itself; the newer session stays.
//	@Description	GET only terminates when the browser reports a first-party navigation (Sec-Fetch-Site);
//	@Description	otherwise it just redirects. Browser navigations and GET requests are redirected to the signed-out page.
//	@Tags			Auth
//	@Success		204	"Signed out"
//	@Success		303	"Redirect to the signed-out page"
//	@Router			/v1/auth/signout [post]
//	@Router			/v1/auth/signout [get]
func (h *SignOutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)

	// A cross-site page could embed the GET form, so it must not end a session.
	if r.Method == http.MethodGet && !httpx.FirstParty(r) {
		h.Trigger.Redirect(w, r)
		return
	}

	var key service.Key
	if claims, ok := httpx.ClaimsFromContext(r.Context()); ok {
		key = service.Key{Subject: claims.Subject, SessionID: claims.SID}
	}
	h.Trigger.Terminate(w, r, key)

	if r.Method == http.MethodGet || httpx.WantsHTML(r) {
		h.Trigger.Redirect(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
