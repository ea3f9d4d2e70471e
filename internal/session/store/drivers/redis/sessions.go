package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/redis/go-redis/v9"
)

const maxDeleteAttempts = 3

type sessionsRepo struct {
	s *Store
}

func (r *sessionsRepo) Create(ctx context.Context, rec domain.Record) error {
	row, err := r.s.codec.Encode(rec)
	if err != nil {
		return err
	}
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	key := r.s.key(row.Subject)
	_, err = r.s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, 0)
		if !row.ExpiresAt.IsZero() {
			p.ExpireAt(ctx, key, row.ExpiresAt)
		}
		return nil
	})
	return err
}

func (r *sessionsRepo) load(ctx context.Context, get func(context.Context, string) *redis.StringCmd, subject string) (store.Row, error) {
	raw, err := get(ctx, r.s.key(subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Row{}, store.ErrNotFound
	}
	if err != nil {
		return store.Row{}, err
	}

	var row store.Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return store.Row{}, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}

func (r *sessionsRepo) Get(ctx context.Context, subject string) (domain.Record, error) {
	row, err := r.load(ctx, r.s.rdb.Get, subject)
	if err != nil {
		return domain.Record{}, err
	}
	return r.s.codec.Decode(row)
}

// swap applies fn to the stored row inside WATCH/MULTI. A concurrent write to
// the key aborts the transaction, which is reported as ErrConflict.
func (r *sessionsRepo) swap(ctx context.Context, subject, previousRefreshToken string, fn func(*store.Row) error) error {
	key := r.s.key(subject)

	err := r.s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		row, err := r.load(ctx, tx.Get, subject)
		if err != nil {
			return err
		}
		if row.Error != "" || row.RefreshFingerprint != store.Fingerprint(previousRefreshToken) {
			return store.ErrConflict
		}

		if err := fn(&row); err != nil {
			return err
		}
		row.UpdatedAt = r.s.now().UTC()

		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, redis.KeepTTL)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrConflict
	}
	return err
}

func (r *sessionsRepo) ReplaceTokens(
	ctx context.Context,
	subject, previousRefreshToken string,
	pair domain.TokenPair,
	claims *domain.IdentityClaims,
) error {
	cols, err := r.s.codec.EncodeTokens(subject, pair)
	if err != nil {
		return err
	}

	var encodedClaims []byte
	if claims != nil {
		c := *claims
		c.Subject = subject
		if encodedClaims, err = store.EncodeClaims(c); err != nil {
			return err
		}
	}

	return r.swap(ctx, subject, previousRefreshToken, func(row *store.Row) error {
		row.TokenColumns = cols
		if encodedClaims != nil {
			row.Claims = encodedClaims
		}
		return nil
	})
}

func (r *sessionsRepo) MarkErrored(
	ctx context.Context,
	subject, previousRefreshToken string,
	marker domain.ErrorMarker,
) error {
	return r.swap(ctx, subject, previousRefreshToken, func(row *store.Row) error {
		row.Error = string(marker)
		return nil
	})
}

func (r *sessionsRepo) Delete(ctx context.Context, subject, id string) error {
	key := r.s.key(subject)
	if id == "" {
		return r.s.rdb.Del(ctx, key).Err()
	}

	// A sign-in racing the delete aborts the transaction; retry so the
	// outcome is decided against whichever record won.
	for range maxDeleteAttempts {
		err := r.s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			row, err := r.load(ctx, tx.Get, subject)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if row.ID != id {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Del(ctx, key)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return store.ErrConflict
}

// DeleteExpired sweeps records whose key TTL has not fired yet, e.g. ones
// written with a clock that disagrees with the server's.
func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var (
		deleted int64
		cursor  uint64
	)

	for {
		keys, next, err := r.s.rdb.Scan(ctx, cursor, r.s.prefix+"session:*", 100).Result()
		if err != nil {
			return deleted, err
		}

		for _, key := range keys {
			raw, err := r.s.rdb.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return deleted, err
			}

			var row store.Row
			if err := json.Unmarshal(raw, &row); err != nil {
				continue
			}
			if row.ExpiresAt.IsZero() || now.Before(row.ExpiresAt) {
				continue
			}

			n, err := r.s.rdb.Del(ctx, key).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
