package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/provider"
	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/internal/session/signout"
	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/metricsx"
	"github.com/aussiebroadwan/portal/pkg/slogx"

	_ "github.com/aussiebroadwan/portal/api/session" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Authenticator runs the authorization-code leg of sign-in.
type Authenticator interface {
	AuthCodeURL(state, nonce, codeVerifier string) string
	Exchange(ctx context.Context, code, codeVerifier, nonce string) (provider.AuthorizationResult, error)
}

// SignInConverter turns a sign-in result into the initial token pair.
type SignInConverter interface {
	ExchangeAuthorizationResult(res provider.AuthorizationResult) (domain.TokenPair, domain.IdentityClaims, error)
}

// Cookies names the two cookies the service issues.
type Cookies struct {
	Session httpx.Cookie
	SignIn  httpx.Cookie
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       *jwtx.CookieSigner
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *metricsx.Metrics
	gatherer     prometheus.Gatherer

	SessionService *service.SessionService
	Authenticator  Authenticator
	SignIns        SignInConverter
	Trigger        *signout.Trigger
	Cookies        Cookies

	// SignInTTL bounds the round trip through the identity provider.
	SignInTTL time.Duration
}

func NewRouter(
	signer *jwtx.CookieSigner,
	buildVersion string,
	st store.Store,
	metrics *metricsx.Metrics,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      metrics,
		gatherer:     gatherer,
		logger:       logger,
		SignInTTL:    jwtx.DefaultSignInTTL,
	}

	// Set default middleware chain. Probes and scrapes are too chatty to log.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz", "/metrics"),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSignIn()
	r.registerSession()
	r.registerSignOut()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Portal Session Service API
//	@version		0.1.0
//	@description	Owns the signed-in user's session: OIDC sign-in, lazy token refresh and sign-out.
//	@description
//	@description	The browser only ever holds an opaque signed cookie. Access tokens are handed to
//	@description	data-fetchers through the Projected Session; refresh tokens never leave the server.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/portal
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						portal_session
//	@description				Signed session cookie set by /v1/auth/callback.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h behind mws and instruments it under the route pattern.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	r.Mux.Handle(pattern, r.metrics.Instrument(pattern, httpx.Chain(h, mws...)))
}

func (r *Router) registerSignIn() {
	h := &SignInHandler{
		Authenticator: r.Authenticator,
		SignIns:       r.SignIns,
		Sessions:      r.SessionService,
		Signer:        r.signer,
		Cookies:       r.Cookies,
		TTL:           r.SignInTTL,
	}

	// Both legs cost a provider round trip - strict limit by IP
	r.handle("GET /v1/auth/signin", http.HandlerFunc(h.HandleStart),
		httpx.RateLimitByIP(httpx.SignInLimit),
	)
	r.handle("GET /v1/auth/callback", http.HandlerFunc(h.HandleCallback),
		httpx.RateLimitByIP(httpx.SignInLimit),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		Sessions: r.SessionService,
		Trigger:  r.Trigger,
		Cookie:   r.Cookies.Session,
	}

	r.handle("GET /v1/session", http.HandlerFunc(h.HandleRead),
		httpx.CookieAuthn(r.signer, r.Cookies.Session.Name),
		httpx.RateLimitBySubject(httpx.ReadLimit),
	)

	// Forced refresh hits the provider every time
	r.handle("POST /v1/session/update", http.HandlerFunc(h.HandleUpdate),
		httpx.CookieAuthn(r.signer, r.Cookies.Session.Name),
		httpx.RateLimitBySubject(httpx.UpdateLimit),
	)
}

func (r *Router) registerSignOut() {
	h := &SignOutHandler{Trigger: r.Trigger}

	// Anonymous sign-out is fine: it just clears whatever cookie is left
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r.handle(method+" /v1/auth/signout", h,
			httpx.OptionalCookieAuthn(r.signer, r.Cookies.Session.Name),
			httpx.RateLimitByIP(httpx.SignInLimit),
		)
	}
}

func (r *Router) registerSystem() {
	r.handle("GET /livez", LivezHandler(r.startTime, r.buildVersion),
		httpx.RateLimitByIP(httpx.ReadLimit),
	)
	r.handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store),
		httpx.RateLimitByIP(httpx.ReadLimit),
	)

	if r.gatherer != nil {
		r.Mux.Handle("GET /metrics", metricsx.Handler(r.gatherer))
	}
}
