package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/store"
)

const sessionColumns = `subject, id, claims, access_token, refresh_token, refresh_fingerprint,
	access_expires_at, refresh_expires_at, error, created_at, updated_at, expires_at`

type sessionsRepo struct {
	db    *sql.DB
	codec *store.Codec
	now   func() time.Time
}

func (r *sessionsRepo) Create(ctx context.Context, rec domain.Record) error {
	row, err := r.codec.Encode(rec)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject) DO UPDATE SET
			id                  = excluded.id,
			claims              = excluded.claims,
			access_token        = excluded.access_token,
			refresh_token       = excluded.refresh_token,
			refresh_fingerprint = excluded.refresh_fingerprint,
			access_expires_at   = excluded.access_expires_at,
			refresh_expires_at  = excluded.refresh_expires_at,
			error               = excluded.error,
			created_at          = excluded.created_at,
			updated_at          = excluded.updated_at,
			expires_at          = excluded.expires_at`,
		row.Subject,
		row.ID,
		string(row.Claims),
		row.AccessToken,
		row.RefreshToken,
		row.RefreshFingerprint,
		store.Millis(row.AccessExpiresAt),
		store.Millis(row.RefreshExpiresAt),
		store.NullString(row.Error),
		row.CreatedAt.UnixMilli(),
		row.UpdatedAt.UnixMilli(),
		store.Millis(row.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionsRepo) Get(ctx context.Context, subject string) (domain.Record, error) {
	var (
		row                            store.Row
		claims                         string
		accessExp, refreshExp, expires sql.NullInt64
		errMarker                      sql.NullString
		created, updated               int64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE subject = ?`, subject,
	).Scan(
		&row.Subject,
		&row.ID,
		&claims,
		&row.AccessToken,
		&row.RefreshToken,
		&row.RefreshFingerprint,
		&accessExp,
		&refreshExp,
		&errMarker,
		&created,
		&updated,
		&expires,
	)
	if err != nil {
		return domain.Record{}, mapNotFound(err)
	}

	row.Claims = []byte(claims)
	row.AccessExpiresAt = store.FromMillis(accessExp)
	row.RefreshExpiresAt = store.FromMillis(refreshExp)
	row.Error = errMarker.String
	row.CreatedAt = time.UnixMilli(created).UTC()
	row.UpdatedAt = time.UnixMilli(updated).UTC()
	row.ExpiresAt = store.FromMillis(expires)

	return r.codec.Decode(row)
}

func (r *sessionsRepo) ReplaceTokens(
	ctx context.Context,
	subject, previousRefreshToken string,
	pair domain.TokenPair,
	claims *domain.IdentityClaims,
) error {
	cols, err := r.codec.EncodeTokens(subject, pair)
	if err != nil {
		return err
	}

	var claimsArg any
	if claims != nil {
		c := *claims
		c.Subject = subject
		b, err := store.EncodeClaims(c)
		if err != nil {
			return err
		}
		claimsArg = string(b)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			access_token        = ?,
			refresh_token       = ?,
			refresh_fingerprint = ?,
			access_expires_at   = ?,
			refresh_expires_at  = ?,
			claims              = COALESCE(?, claims),
			updated_at          = ?
		WHERE subject = ? AND refresh_fingerprint = ? AND error IS NULL`,
		cols.AccessToken,
		cols.RefreshToken,
		cols.RefreshFingerprint,
		store.Millis(cols.AccessExpiresAt),
		store.Millis(cols.RefreshExpiresAt),
		claimsArg,
		r.now().UnixMilli(),
		subject,
		store.Fingerprint(previousRefreshToken),
	)
	if err != nil {
		return fmt.Errorf("replace tokens: %w", err)
	}
	return r.checkSwapped(ctx, res, subject)
}

func (r *sessionsRepo) MarkErrored(
	ctx context.Context,
	subject, previousRefreshToken string,
	marker domain.ErrorMarker,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET error = ?, updated_at = ?
		WHERE subject = ? AND refresh_fingerprint = ? AND error IS NULL`,
		string(marker),
		r.now().UnixMilli(),
		subject,
		store.Fingerprint(previousRefreshToken),
	)
	if err != nil {
		return fmt.Errorf("mark errored: %w", err)
	}
	return r.checkSwapped(ctx, res, subject)
}

// checkSwapped turns a zero-row compare-and-swap into ErrNotFound or
// ErrConflict.
func (r *sessionsRepo) checkSwapped(ctx context.Context, res sql.Result, subject string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE subject = ?`, subject).Scan(&one)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrConflict
}

func (r *sessionsRepo) Delete(ctx context.Context, subject, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE subject = ? AND (? = '' OR id = ?)`, subject, id, id)
	return err
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
