package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrWeakKey     = errors.New("jwtx: signing key must be at least 32 bytes")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// CookieSigner signs and verifies the service's own cookies with HS256. The
// key is derived from the deployment secret and never leaves the process.
type CookieSigner struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewCookieSigner creates a signer for the given issuer.
func NewCookieSigner(key []byte, issuer string) (*CookieSigner, error) {
	if len(key) < 32 {
		return nil, ErrWeakKey
	}
	return &CookieSigner{key: key, issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the clock used for expiry checks (tests).
func (s *CookieSigner) WithClock(now func() time.Time) *CookieSigner {
	s.now = now
	return s
}

// Issuer returns the issuer stamped into new cookies.
func (s *CookieSigner) Issuer() string { return s.issuer }

// Sign turns claims into a compact JWT.
func (s *CookieSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.key)
}

// Verify parses a cookie value and checks signature, issuer, audience and
// expiry.
func (s *CookieSigner) Verify(raw, audience string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(), // checked below against our own clock
	)

	token, err := parser.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSig
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	if err := claims.ValidateIssuer(s.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience([]string{audience}); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(s.now()); err != nil {
		return nil, err
	}

	return claims, nil
}
