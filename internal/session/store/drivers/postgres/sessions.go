package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/store"
)

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
		insert into sessions (
			subject, id, claims, access_token, refresh_token, refresh_fingerprint,
			access_expires_at, refresh_expires_at, error, created_at, updated_at, expires_at
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		on conflict (subject) do update set
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
	return mapError(err)
}

func (r *sessionsRepo) Get(ctx context.Context, subject string) (domain.Record, error) {
	var (
		row                            store.Row
		claims                         string
		accessExp, refreshExp, expires sql.NullInt64
		errMarker                      sql.NullString
		created, updated               int64
	)

	err := r.db.QueryRowContext(ctx, `
		select subject, id, claims, access_token, refresh_token, refresh_fingerprint,
			access_expires_at, refresh_expires_at, error, created_at, updated_at, expires_at
		from sessions where subject = $1`, subject,
	).Scan(
		&row.Subject, &row.ID, &claims,
		&row.AccessToken, &row.RefreshToken, &row.RefreshFingerprint,
		&accessExp, &refreshExp, &errMarker,
		&created, &updated, &expires,
	)
	if err != nil {
		return domain.Record{}, mapError(err)
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

	var claimsArg sql.NullString
	if claims != nil {
		c := *claims
		c.Subject = subject
		b, err := store.EncodeClaims(c)
		if err != nil {
			return err
		}
		claimsArg = sql.NullString{String: string(b), Valid: true}
	}

	// Under read committed a concurrent update blocks on the row lock and
	// then re-checks the fingerprint, so only one writer can match.
	res, err := r.db.ExecContext(ctx, `
		update sessions set
			access_token        = $1,
			refresh_token       = $2,
			refresh_fingerprint = $3,
			access_expires_at   = $4,
			refresh_expires_at  = $5,
			claims              = coalesce($6::jsonb, claims),
			updated_at          = $7
		where subject = $8 and refresh_fingerprint = $9 and error is null`,
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
		return mapError(err)
	}
	return r.checkSwapped(ctx, res, subject)
}

func (r *sessionsRepo) MarkErrored(
	ctx context.Context,
	subject, previousRefreshToken string,
	marker domain.ErrorMarker,
) error {
	res, err := r.db.ExecContext(ctx, `
		update sessions set error = $1, updated_at = $2
		where subject = $3 and refresh_fingerprint = $4 and error is null`,
		string(marker),
		r.now().UnixMilli(),
		subject,
		store.Fingerprint(previousRefreshToken),
	)
	if err != nil {
		return mapError(err)
	}
	return r.checkSwapped(ctx, res, subject)
}

func (r *sessionsRepo) checkSwapped(ctx context.Context, res sql.Result, subject string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		`select exists(select 1 from sessions where subject = $1)`, subject).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r *sessionsRepo) Delete(ctx context.Context, subject, id string) error {
	_, err := r.db.ExecContext(ctx,
		`delete from sessions where subject = $1 and ($2::text = '' or id = $2)`, subject, id)
	return mapError(err)
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`delete from sessions where expires_at is not null and expires_at <= $1`, now.UnixMilli())
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}
