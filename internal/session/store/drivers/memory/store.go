// Package memory is an in-process store driver. Records are lost on restart
// and are not shared between replicas.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/domain"
	"github.com/aussiebroadwan/portal/internal/session/store"
)

type Store struct {
	mu      sync.Mutex
	records map[string]domain.Record
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{records: make(map[string]domain.Record), now: time.Now}
}

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{s: s} }
func (s *Store) ApplyMigrations() error   { return nil }
func (s *Store) Close() error             { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type sessionsRepo struct {
	s *Store
}

// clone keeps callers from aliasing the stored slices.
func clone(rec domain.Record) domain.Record {
	rec.Claims.Groups = slices.Clone(rec.Claims.Groups)
	return rec
}

func (r *sessionsRepo) Create(ctx context.Context, rec domain.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.records[rec.Subject()] = clone(rec)
	return nil
}

func (r *sessionsRepo) Get(ctx context.Context, subject string) (domain.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[subject]
	if !ok {
		return domain.Record{}, store.ErrNotFound
	}
	return clone(rec), nil
}

// swap runs fn on the record under the lock when the compare rule holds.
func (r *sessionsRepo) swap(subject, previousRefreshToken string, fn func(*domain.Record)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[subject]
	switch {
	case !ok:
		return store.ErrNotFound
	case rec.Errored() || rec.Tokens.RefreshToken != previousRefreshToken:
		return store.ErrConflict
	}

	fn(&rec)
	rec.UpdatedAt = r.s.now().UTC()
	r.s.records[subject] = rec
	return nil
}

func (r *sessionsRepo) ReplaceTokens(
	ctx context.Context,
	subject, previousRefreshToken string,
	pair domain.TokenPair,
	claims *domain.IdentityClaims,
) error {
	return r.swap(subject, previousRefreshToken, func(rec *domain.Record) {
		rec.Tokens = pair
		if claims != nil {
			c := *claims
			c.Subject = subject
			rec.Claims = c
		}
	})
}

func (r *sessionsRepo) MarkErrored(
	ctx context.Context,
	subject, previousRefreshToken string,
	marker domain.ErrorMarker,
) error {
	return r.swap(subject, previousRefreshToken, func(rec *domain.Record) {
		rec.Error = marker
	})
}

func (r *sessionsRepo) Delete(ctx context.Context, subject, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rec, ok := r.s.records[subject]; ok && id != "" && rec.ID != id {
		return nil
	}
	delete(r.s.records, subject)
	return nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for subject, rec := range r.s.records {
		if rec.Expired(now) {
			delete(r.s.records, subject)
			n++
		}
	}
	return n, nil
}
