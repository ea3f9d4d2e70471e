package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// CookieAuthn verifies the session cookie and injects the principal into the
// request context. Requests without a valid cookie get a 401.
func CookieAuthn(signer *jwtx.CookieSigner, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				WriteError(w, http.StatusUnauthorized, "unauthenticated", "no session")
				return
			}

			claims, err := signer.Verify(cookie.Value, jwtx.AudienceSession)
			if err != nil {
				slogx.FromContext(ctx).Warn("session cookie rejected", "err", err)
				WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid session")
				return
			}

			ctx = contextWithSession(ctx, claims)
			ctx = slogx.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalCookieAuthn is like CookieAuthn but lets anonymous requests
// through untouched.
func OptionalCookieAuthn(signer *jwtx.CookieSigner, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := signer.Verify(cookie.Value, jwtx.AudienceSession)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("ignoring invalid session cookie", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := contextWithSession(r.Context(), claims)
			ctx = slogx.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
