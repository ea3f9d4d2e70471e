package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/provider"
	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/aussiebroadwan/portal/pkg/metricsx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	// DefaultMaxAge is the absolute session lifetime, independent of token
	// expiry.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DefaultRefreshTimeout bounds a refresh exchange including any ID token
	// verification.
	DefaultRefreshTimeout = 15 * time.Second
)

var (
	// ErrNoSession means the caller holds no live session: never signed in,
	// signed out, or superseded by a newer sign-in.
	ErrNoSession = errors.New("no_session")

	// ErrSessionExpired means the session outlived its maximum age and has
	// been removed.
	ErrSessionExpired = errors.New("session_expired")

	// ErrInvalidClaims means sign-in was attempted without a subject.
	ErrInvalidClaims = errors.New("invalid_claims")
)

// Exchanger redeems a refresh token at the identity provider.
type Exchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (provider.Refreshed, error)
}

// ClaimsVerifier turns a freshly issued ID token into identity claims.
type ClaimsVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (domain.IdentityClaims, error)
}

// State is where a Session Record sits in the refresh state machine.
type State int

const (
	StateFresh State = iota
	StateRefreshing
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRefreshing:
		return "refreshing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StateOf reports the state rec is in at now. A record whose access token has
// lapsed is Refreshing: the next read will exchange its refresh token.
func StateOf(rec domain.Record, now time.Time) State {
	switch {
	case rec.Errored():
		return StateErrored
	case rec.Tokens.AccessTokenValid(now):
		return StateFresh
	default:
		return StateRefreshing
	}
}

// Key identifies the session a cookie refers to. An empty SessionID matches
// whatever record the subject currently holds.
type Key struct {
	Subject   string
	SessionID string
}

// SessionService owns the Session Record lifecycle: sign-in, lazy refresh on
// read, explicit update and sign-out.
//
// At most one refresh runs per session in this process; across processes the
// store's compare-and-swap decides which result is kept. Refresh failures
// never surface as errors: they set the record's error marker. Only store
// failures are returned.
type SessionService struct {
	Store     store.Store
	Exchanger Exchanger

	// Verifier re-syncs claims on Update. Optional.
	Verifier ClaimsVerifier

	// Metrics is optional; a nil value records nothing.
	Metrics *metricsx.Metrics

	Now            func() time.Time
	MaxAge         time.Duration
	RefreshTimeout time.Duration

	flights singleflight.Group
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) maxAge() time.Duration {
	if s.MaxAge > 0 {
		return s.MaxAge
	}
	return DefaultMaxAge
}

func (s *SessionService) refreshTimeout() time.Duration {
	if s.RefreshTimeout > 0 {
		return s.RefreshTimeout
	}
	return DefaultRefreshTimeout
}

// SignIn stores a new Session Record for claims.Subject, superseding any
// session the subject already had.
func (s *SessionService) SignIn(ctx context.Context, claims domain.IdentityClaims, pair domain.TokenPair) (domain.Record, error) {
	claims.Subject = strings.TrimSpace(claims.Subject)
	if claims.Subject == "" {
		return domain.Record{}, ErrInvalidClaims
	}

	now := s.now()
	rec := domain.Record{
		ID:        idx.NewAt(now).String(),
		Claims:    claims,
		Tokens:    pair,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.maxAge()),
	}

	if err := s.Store.Sessions().Create(ctx, rec); err != nil {
		return domain.Record{}, fmt.Errorf("create session: %w", err)
	}

	slogx.FromContext(ctx).Info("session created",
		slog.String("subject", rec.Subject()),
		slog.String("session_id", rec.ID),
	)
	return rec, nil
}

// Read returns the session for key, refreshing its tokens first when the
// access token has expired. Errored records come back unchanged.
func (s *SessionService) Read(ctx context.Context, key Key) (domain.Record, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return domain.Record{}, err
	}

	if st := StateOf(rec, s.now()); st != StateRefreshing {
		s.Metrics.SessionRead(st.String())
		return rec, nil
	}

	rec, err = s.refresh(ctx, Key{Subject: key.Subject, SessionID: rec.ID}, false)
	if err != nil {
		return domain.Record{}, err
	}
	s.Metrics.SessionRead(StateOf(rec, s.now()).String())
	return rec, nil
}

// Update forces a refresh regardless of access token expiry. When the
// provider returns an ID token and a Verifier is configured the claims are
// replaced with the ones it asserts.
func (s *SessionService) Update(ctx context.Context, key Key) (domain.Record, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return domain.Record{}, err
	}
	if rec.Errored() {
		return rec, nil
	}
	return s.refresh(ctx, Key{Subject: key.Subject, SessionID: rec.ID}, true)
}

// SignOut removes the session key refers to. A key naming a superseded
// session leaves the newer one alone. Signing out twice is not an error.
func (s *SessionService) SignOut(ctx context.Context, key Key) error {
	if err := s.Store.Sessions().Delete(ctx, key.Subject, key.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slogx.FromContext(ctx).Info("session terminated",
		slog.String("subject", key.Subject),
		slog.String("session_id", key.SessionID),
	)
	return nil
}

// load fetches the record for key and enforces the maximum session age.
func (s *SessionService) load(ctx context.Context, key Key) (domain.Record, error) {
	if key.Subject == "" {
		return domain.Record{}, ErrNoSession
	}

	rec, err := s.get(ctx, key)
	if err != nil {
		return domain.Record{}, err
	}

	if rec.Expired(s.now()) {
		if err := s.Store.Sessions().Delete(ctx, key.Subject, rec.ID); err != nil {
			return domain.Record{}, fmt.Errorf("delete expired session: %w", err)
		}
		slogx.FromContext(ctx).Info("session expired", slog.String("subject", key.Subject))
		return domain.Record{}, ErrSessionExpired
	}
	return rec, nil
}

// get fetches the record for key. A record with another ID belongs to a
// newer sign-in and is never handed to the holder of key.
func (s *SessionService) get(ctx context.Context, key Key) (domain.Record, error) {
	rec, err := s.Store.Sessions().Get(ctx, key.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Record{}, ErrNoSession
		}
		return domain.Record{}, fmt.Errorf("get session: %w", err)
	}
	if key.SessionID != "" && rec.ID != key.SessionID {
		return domain.Record{}, ErrNoSession
	}
	return rec, nil
}

// refresh runs at most one exchange per session at a time; concurrent callers
// wait for and share its outcome.
func (s *SessionService) refresh(ctx context.Context, key Key, force bool) (domain.Record, error) {
	// The flight outlives any single caller so a client disconnect can't
	// strand the shared result halfway through.
	fctx := context.WithoutCancel(ctx)

	v, err, _ := s.flights.Do(key.Subject+"/"+key.SessionID, func() (any, error) {
		return s.doRefresh(fctx, key, force)
	})
	if err != nil {
		return domain.Record{}, err
	}
	return v.(domain.Record), nil
}

func (s *SessionService) doRefresh(ctx context.Context, key Key, force bool) (domain.Record, error) {
	subject := key.Subject
	l := slogx.FromContext(ctx).With(slog.String("subject", subject))
	sessions := s.Store.Sessions()

	// A flight that finished just before this one started may already have
	// done the work.
	cur, err := s.get(ctx, key)
	if err != nil {
		return domain.Record{}, err
	}
	if cur.Errored() || (!force && cur.Tokens.AccessTokenValid(s.now())) {
		return cur, nil
	}

	if cur.Tokens.RefreshToken == "" {
		return s.fail(ctx, l, key, cur, provider.ErrMissingRefreshToken)
	}

	xctx, cancel := context.WithTimeout(ctx, s.refreshTimeout())
	defer cancel()

	res, err := s.Exchanger.ExchangeRefreshToken(xctx, cur.Tokens.RefreshToken)
	if err != nil {
		return s.fail(ctx, l, key, cur, err)
	}

	pair := res.Merge(cur.Tokens)
	var claims *domain.IdentityClaims
	if force && res.IDToken != "" && s.Verifier != nil {
		c, err := s.Verifier.VerifyIDToken(xctx, res.IDToken)
		switch {
		case err != nil:
			l.Warn("refreshed id token rejected, keeping claims", slog.Any("error", err))
		case c.Subject != subject:
			l.Warn("refreshed id token names another subject, keeping claims",
				slog.String("id_token_subject", c.Subject))
		default:
			claims = &c
		}
	}

	err = sessions.ReplaceTokens(ctx, subject, cur.Tokens.RefreshToken, pair, claims)
	switch {
	case errors.Is(err, store.ErrConflict):
		// Another replica rotated first; its pair is newer than ours.
		s.Metrics.RefreshOutcome("conflict")
		l.Info("refresh lost race, using stored session")
		return s.get(ctx, key)
	case errors.Is(err, store.ErrNotFound):
		return domain.Record{}, ErrNoSession
	case err != nil:
		return domain.Record{}, fmt.Errorf("replace tokens: %w", err)
	}

	s.Metrics.RefreshOutcome("refreshed")
	l.Debug("session refreshed", slog.Bool("rotated", res.Rotated()))

	cur.Tokens = pair
	if claims != nil {
		cur.Claims = *claims
	}
	cur.UpdatedAt = s.now()
	return cur, nil
}

// fail moves cur to Errored unless a sibling already rotated its refresh
// token, in which case the newer record wins.
func (s *SessionService) fail(ctx context.Context, l *slog.Logger, key Key, cur domain.Record, cause error) (domain.Record, error) {
	reason := provider.Reason(cause)
	s.Metrics.RefreshOutcome(reason)
	l.Warn("refresh failed", slog.String("reason", reason))

	var rej *provider.RejectedError
	if errors.As(cause, &rej) {
		l.Debug("provider rejected refresh",
			slog.Int("status", rej.StatusCode),
			slog.String("body", string(rej.Body)),
		)
	}

	err := s.Store.Sessions().MarkErrored(ctx, cur.Subject(), cur.Tokens.RefreshToken, domain.RefreshTokenError)
	switch {
	case errors.Is(err, store.ErrConflict):
		return s.get(ctx, key)
	case errors.Is(err, store.ErrNotFound):
		return domain.Record{}, ErrNoSession
	case err != nil:
		return domain.Record{}, fmt.Errorf("mark errored: %w", err)
	}

	cur.Error = domain.RefreshTokenError
	cur.UpdatedAt = s.now()
	return cur, nil
}
