package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

// TokenColumns is the at-rest form of a token pair. Both tokens are sealed
// with the subject as additional data so a value can't be replayed into
// another principal's row.
type TokenColumns struct {
	AccessToken        string    `json:"access_token"`
	RefreshToken       string    `json:"refresh_token"`
	RefreshFingerprint string    `json:"refresh_fingerprint"`
	AccessExpiresAt    time.Time `json:"access_expires_at"`
	RefreshExpiresAt   time.Time `json:"refresh_expires_at"`
}

// Row is the at-rest form of a Session Record shared by the persistent
// drivers.
type Row struct {
	Subject string `json:"subject"`
	ID      string `json:"id"`
	Claims  []byte `json:"claims"`
	TokenColumns
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Codec converts records to rows and back.
type Codec struct {
	sealer *cryptox.Sealer
}

func NewCodec(sealer *cryptox.Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Fingerprint is the value refresh tokens are compared by.
func Fingerprint(refreshToken string) string {
	return cryptox.FingerprintToken(refreshToken)
}

func (c *Codec) EncodeTokens(subject string, p domain.TokenPair) (TokenColumns, error) {
	access, err := c.sealer.SealString(p.AccessToken, subject)
	if err != nil {
		return TokenColumns{}, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := c.sealer.SealString(p.RefreshToken, subject)
	if err != nil {
		return TokenColumns{}, fmt.Errorf("seal refresh token: %w", err)
	}

	return TokenColumns{
		AccessToken:        access,
		RefreshToken:       refresh,
		RefreshFingerprint: Fingerprint(p.RefreshToken),
		AccessExpiresAt:    p.AccessTokenExpiresAt,
		RefreshExpiresAt:   p.RefreshTokenExpiresAt,
	}, nil
}

func (c *Codec) DecodeTokens(subject string, t TokenColumns) (domain.TokenPair, error) {
	access, err := c.sealer.OpenString(t.AccessToken, subject)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("open access token: %w", err)
	}
	refresh, err := c.sealer.OpenString(t.RefreshToken, subject)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("open refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  t.AccessExpiresAt,
		RefreshTokenExpiresAt: t.RefreshExpiresAt,
	}, nil
}

func (c *Codec) Encode(rec domain.Record) (Row, error) {
	claims, err := EncodeClaims(rec.Claims)
	if err != nil {
		return Row{}, err
	}

	tokens, err := c.EncodeTokens(rec.Subject(), rec.Tokens)
	if err != nil {
		return Row{}, err
	}

	return Row{
		Subject:      rec.Subject(),
		ID:           rec.ID,
		Claims:       claims,
		TokenColumns: tokens,
		Error:        string(rec.Error),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

func (c *Codec) Decode(row Row) (domain.Record, error) {
	var claims domain.IdentityClaims
	if err := json.Unmarshal(row.Claims, &claims); err != nil {
		return domain.Record{}, fmt.Errorf("decode claims: %w", err)
	}
	claims.Subject = row.Subject

	tokens, err := c.DecodeTokens(row.Subject, row.TokenColumns)
	if err != nil {
		return domain.Record{}, err
	}

	return domain.Record{
		ID:        row.ID,
		Claims:    claims,
		Tokens:    tokens,
		Error:     domain.ErrorMarker(row.Error),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func EncodeClaims(c domain.IdentityClaims) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode claims: %w", err)
	}
	return b, nil
}

// Millis stores an instant as unix milliseconds. The zero time is NULL so it
// stays distinguishable from the epoch.
func Millis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// FromMillis reverses Millis.
func FromMillis(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.UnixMilli(n.Int64).UTC()
}

// NullString maps "" to NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
