// Package signout acts on the session error marker. Everything else only
// carries the marker along.
package signout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// DefaultLandingPath is where browsers end up once signed out.
const DefaultLandingPath = "/signed-out"

// Terminator removes the Session Record key refers to. Removing a missing or
// superseded record must succeed.
type Terminator interface {
	SignOut(ctx context.Context, key service.Key) error
}

// Trigger forces sign-out of sessions carrying the error marker.
type Trigger struct {
	Sessions    Terminator
	Cookie      httpx.Cookie
	LandingPath string
}

func (t *Trigger) landing() string {
	if t.LandingPath == "" {
		return DefaultLandingPath
	}
	return t.LandingPath
}

// Observe inspects ps and, when it carries the error marker, terminates the
// session, clears the session cookie and redirects browser navigations to
// the landing page. It reports whether it acted; when it returns true with a
// non-browser request nothing has been written to the body yet.
func (t *Trigger) Observe(w http.ResponseWriter, r *http.Request, key service.Key, ps domain.ProjectedSession) bool {
	if !ps.Errored() {
		return false
	}

	t.Terminate(w, r, key)
	slogx.FromContext(r.Context()).Info("forced sign-out",
		slog.String("subject", key.Subject),
		slog.String("error", string(ps.Error)),
	)

	if httpx.WantsHTML(r) {
		http.Redirect(w, r, t.landing(), http.StatusSeeOther)
	}
	return true
}

// Terminate deletes the Session Record and clears the cookie. It is shared
// with voluntary sign-out and is safe to repeat.
func (t *Trigger) Terminate(w http.ResponseWriter, r *http.Request, key service.Key) {
	if key.Subject != "" {
		if err := t.Sessions.SignOut(r.Context(), key); err != nil {
			// The cookie still goes; the record ages out via housekeeping.
			slogx.FromContext(r.Context()).Error("failed to delete session",
				slog.String("subject", key.Subject),
				slog.Any("error", err),
			)
		}
	}
	t.Cookie.Clear(w)
}

// Redirect sends browser navigations to the landing page.
func (t *Trigger) Redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, t.landing(), http.StatusSeeOther)
}
