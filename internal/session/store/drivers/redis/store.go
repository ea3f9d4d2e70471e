// Package redis keeps session records as JSON documents in Redis. Keys expire
// on their own at the record's maximum age.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the driver.
const DefaultPrefix = "portal:"

type Store struct {
	rdb    *redis.Client
	codec  *store.Codec
	prefix string
	now    func() time.Time
}

// Open connects using a redis:// URL. An empty prefix means DefaultPrefix.
func Open(url string, codec *store.Codec, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return New(redis.NewClient(opts), codec, prefix), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, codec *store.Codec, prefix string) *Store {
	return &Store{rdb: rdb, codec: codec, prefix: prefix, now: time.Now}
}

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{s: s} }

// ApplyMigrations is a no-op; records are schemaless.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) key(subject string) string {
	return s.prefix + "session:" + subject
}
