// Package storetest is the behaviour every store driver must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Base is the instant fixtures are built around. It is close to the wall
// clock so drivers with native expiry keep the records, and millisecond
// aligned so it survives every driver's encoding.
var Base = time.Now().UTC().Truncate(time.Millisecond)

// Record builds a valid fixture for subject.
func Record(subject, refreshToken string) domain.Record {
	return domain.Record{
		ID: idx.NewAt(Base).String(),
		Claims: domain.IdentityClaims{
			Subject:       subject,
			Email:         subject + "@example.com",
			Name:          "Ada Lovelace",
			EmailVerified: true,
			Address:       domain.Address{Locality: "London"},
			Groups:        []string{"agency"},
			UserData:      `{"beta":true}`,
		},
		Tokens: domain.TokenPair{
			AccessToken:           "at-" + refreshToken,
			RefreshToken:          refreshToken,
			AccessTokenExpiresAt:  Base.Add(5 * time.Minute),
			RefreshTokenExpiresAt: Base.Add(time.Hour),
		},
		CreatedAt: Base,
		UpdatedAt: Base,
		ExpiresAt: Base.Add(30 * 24 * time.Hour),
	}
}

// Run exercises s. newStore must return an empty, migrated store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		sessions := newStore(t).Sessions()

		_, err := sessions.Get(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create and get", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		rec := Record("user-1", "rt-1")

		require.NoError(t, sessions.Create(ctx, rec))

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, rec, got)
	})

	t.Run("create supersedes", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		require.NoError(t, sessions.Create(ctx, Record("user-1", "rt-1")))

		newer := Record("user-1", "rt-9")
		newer.ID = "01HZ0000000000000000000009"
		newer.Claims.Name = "Ada King"
		require.NoError(t, sessions.Create(ctx, newer))

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, newer.ID, got.ID)
		require.Equal(t, "rt-9", got.Tokens.RefreshToken)
		require.Equal(t, "Ada King", got.Claims.Name)
	})

	t.Run("replace tokens", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		rec := Record("user-1", "rt-1")
		require.NoError(t, sessions.Create(ctx, rec))

		next := domain.TokenPair{
			AccessToken:           "at-2",
			RefreshToken:          "rt-2",
			AccessTokenExpiresAt:  Base.Add(10 * time.Minute),
			RefreshTokenExpiresAt: Base.Add(2 * time.Hour),
		}
		require.NoError(t, sessions.ReplaceTokens(ctx, "user-1", "rt-1", next, nil))

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, next, got.Tokens)
		require.Equal(t, rec.Claims, got.Claims, "claims untouched without an update")
		require.Equal(t, rec.ID, got.ID)
		require.False(t, got.Errored())
	})

	t.Run("replace tokens and claims", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		require.NoError(t, sessions.Create(ctx, Record("user-1", "rt-1")))

		claims := Record("user-1", "").Claims
		claims.Name = "Ada King"
		next := Record("user-1", "rt-2").Tokens
		require.NoError(t, sessions.ReplaceTokens(ctx, "user-1", "rt-1", next, &claims))

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "Ada King", got.Claims.Name)
	})

	t.Run("replace tokens with stale refresh token", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		rec := Record("user-1", "rt-1")
		require.NoError(t, sessions.Create(ctx, rec))

		err := sessions.ReplaceTokens(ctx, "user-1", "rt-0", Record("user-1", "rt-2").Tokens, nil)
		require.ErrorIs(t, err, store.ErrConflict)

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, rec.Tokens, got.Tokens)
	})

	t.Run("replace tokens missing record", func(t *testing.T) {
		sessions := newStore(t).Sessions()

		err := sessions.ReplaceTokens(ctx, "nobody", "rt-1", Record("nobody", "rt-2").Tokens, nil)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("mark errored is terminal", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		rec := Record("user-1", "rt-1")
		require.NoError(t, sessions.Create(ctx, rec))

		require.NoError(t, sessions.MarkErrored(ctx, "user-1", "rt-1", domain.RefreshTokenError))

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, domain.RefreshTokenError, got.Error)
		require.Equal(t, rec.Claims, got.Claims)
		require.Equal(t, rec.Tokens, got.Tokens)

		err = sessions.ReplaceTokens(ctx, "user-1", "rt-1", Record("user-1", "rt-2").Tokens, nil)
		require.ErrorIs(t, err, store.ErrConflict)

		err = sessions.MarkErrored(ctx, "user-1", "rt-1", domain.RefreshTokenError)
		require.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("mark errored with stale refresh token", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		require.NoError(t, sessions.Create(ctx, Record("user-1", "rt-1")))

		err := sessions.MarkErrored(ctx, "user-1", "rt-0", domain.RefreshTokenError)
		require.ErrorIs(t, err, store.ErrConflict)

		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.False(t, got.Errored())
	})

	t.Run("mark errored with empty refresh token", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		require.NoError(t, sessions.Create(ctx, Record("user-1", "")))

		require.NoError(t, sessions.MarkErrored(ctx, "user-1", "", domain.RefreshTokenError))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		require.NoError(t, sessions.Create(ctx, Record("user-1", "rt-1")))

		require.NoError(t, sessions.Delete(ctx, "user-1", ""))
		require.NoError(t, sessions.Delete(ctx, "user-1", ""))

		_, err := sessions.Get(ctx, "user-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete by id spares a newer session", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		older := Record("user-1", "rt-1")
		require.NoError(t, sessions.Create(ctx, older))

		newer := Record("user-1", "rt-2")
		require.NoError(t, sessions.Create(ctx, newer))

		require.NoError(t, sessions.Delete(ctx, "user-1", older.ID))
		got, err := sessions.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, newer.ID, got.ID)

		require.NoError(t, sessions.Delete(ctx, "user-1", newer.ID))
		_, err = sessions.Get(ctx, "user-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		sessions := newStore(t).Sessions()

		old := Record("old", "rt-1")
		old.ExpiresAt = Base.Add(time.Hour)
		current := Record("current", "rt-2")
		require.NoError(t, sessions.Create(ctx, old))
		require.NoError(t, sessions.Create(ctx, current))

		n, err := sessions.DeleteExpired(ctx, Base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = sessions.Get(ctx, "old")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = sessions.Get(ctx, "current")
		require.NoError(t, err)
	})

	t.Run("concurrent replace has one winner", func(t *testing.T) {
		sessions := newStore(t).Sessions()
		require.NoError(t, sessions.Create(ctx, Record("user-1", "rt-1")))

		const n = 8
		var (
			wg       sync.WaitGroup
			wins     atomic.Int32
			conflict atomic.Int32
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next := Record("user-1", "rt-next").Tokens
				err := sessions.ReplaceTokens(ctx, "user-1", "rt-1", next, nil)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, store.ErrConflict):
					conflict.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())
		require.Equal(t, int32(n-1), conflict.Load())
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(ctx))
	})
}
