package postgres_test

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/postgres"
	"github.com/aussiebroadwan/portal/internal/session/store/storetest"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

var sessionColumns = []string{
	"subject", "id", "claims", "access_token", "refresh_token", "refresh_fingerprint",
	"access_expires_at", "refresh_expires_at", "error", "created_at", "updated_at", "expires_at",
}

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock, *store.Codec) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	sealer, err := cryptox.NewSealer(bytes.Repeat([]byte{5}, cryptox.SealKeySize))
	require.NoError(t, err)
	codec := store.NewCodec(sealer)

	return postgres.New(db, codec), mock, codec
}

func TestCreate(t *testing.T) {
	s, mock, _ := newMockStore(t)
	rec := storetest.Record("user-1", "rt-1")

	mock.ExpectExec("insert into sessions").
		WithArgs(
			"user-1",
			rec.ID,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			store.Fingerprint("rt-1"),
			rec.Tokens.AccessTokenExpiresAt.UnixMilli(),
			rec.Tokens.RefreshTokenExpiresAt.UnixMilli(),
			nil,
			rec.CreatedAt.UnixMilli(),
			rec.UpdatedAt.UnixMilli(),
			rec.ExpiresAt.UnixMilli(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Sessions().Create(context.Background(), rec))
}

func TestCreateDuplicateID(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec("insert into sessions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "sessions_id_idx"})

	err := s.Sessions().Create(context.Background(), storetest.Record("user-1", "rt-1"))
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestGet(t *testing.T) {
	s, mock, codec := newMockStore(t)
	rec := storetest.Record("user-1", "rt-1")

	row, err := codec.Encode(rec)
	require.NoError(t, err)

	mock.ExpectQuery("select subject, id, claims").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(sessionColumns).AddRow(
			row.Subject, row.ID, string(row.Claims),
			row.AccessToken, row.RefreshToken, row.RefreshFingerprint,
			row.AccessExpiresAt.UnixMilli(), row.RefreshExpiresAt.UnixMilli(), nil,
			row.CreatedAt.UnixMilli(), row.UpdatedAt.UnixMilli(), row.ExpiresAt.UnixMilli(),
		))

	got, err := s.Sessions().Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestGetMissing(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectQuery("select subject, id, claims").
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Sessions().Get(context.Background(), "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplaceTokens(t *testing.T) {
	pair := storetest.Record("user-1", "rt-2").Tokens

	t.Run("swapped", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`update sessions set\s+access_token`).
			WithArgs(
				sqlmock.AnyArg(), sqlmock.AnyArg(), store.Fingerprint("rt-2"),
				pair.AccessTokenExpiresAt.UnixMilli(), pair.RefreshTokenExpiresAt.UnixMilli(),
				nil, sqlmock.AnyArg(), "user-1", store.Fingerprint("rt-1"),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Sessions().ReplaceTokens(context.Background(), "user-1", "rt-1", pair, nil))
	})

	t.Run("lost the race", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`update sessions set\s+access_token`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("select exists").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := s.Sessions().ReplaceTokens(context.Background(), "user-1", "rt-1", pair, nil)
		require.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("missing record", func(t *testing.T) {
		s, mock, _ := newMockStore(t)

		mock.ExpectExec(`update sessions set\s+access_token`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("select exists").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := s.Sessions().ReplaceTokens(context.Background(), "user-1", "rt-1", pair, nil)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("with claims", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		claims := storetest.Record("user-1", "").Claims

		mock.ExpectExec(`update sessions set\s+access_token`).
			WithArgs(
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Sessions().ReplaceTokens(context.Background(), "user-1", "rt-1", pair, &claims))
	})
}

func TestMarkErrored(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec(`update sessions set error`).
		WithArgs(string(domain.RefreshTokenError), sqlmock.AnyArg(), "user-1", store.Fingerprint("rt-1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Sessions().MarkErrored(context.Background(), "user-1", "rt-1", domain.RefreshTokenError)
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec("delete from sessions where subject").
		WithArgs("user-1", "01HZ0000000000000000000000").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Sessions().Delete(context.Background(), "user-1", "01HZ0000000000000000000000"))
}

func TestDeleteExpired(t *testing.T) {
	s, mock, _ := newMockStore(t)
	now := time.UnixMilli(1717200000000)

	mock.ExpectExec("delete from sessions where expires_at").
		WithArgs(now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Sessions().DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}
