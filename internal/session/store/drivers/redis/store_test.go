package redis_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/store"
	sessionredis "github.com/aussiebroadwan/portal/internal/session/store/drivers/redis"
	"github.com/aussiebroadwan/portal/internal/session/store/storetest"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis and returns a connected client.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	rdb := setupRedisContainer(t)

	sealer, err := cryptox.NewSealer(bytes.Repeat([]byte{4}, cryptox.SealKeySize))
	require.NoError(t, err)
	codec := store.NewCodec(sealer)

	storetest.Run(t, func(t *testing.T) store.Store {
		// A fresh prefix per case keeps cases isolated on one server.
		return sessionredis.New(rdb, codec, "test:"+idx.New().String()+":")
	})

	t.Run("key expires at session max age", func(t *testing.T) {
		ctx := context.Background()
		prefix := "ttl:" + idx.New().String() + ":"
		s := sessionredis.New(rdb, codec, prefix)

		rec := storetest.Record("user-1", "rt-1")
		rec.ExpiresAt = time.Now().Add(time.Hour).UTC()
		require.NoError(t, s.Sessions().Create(ctx, rec))

		ttl, err := rdb.TTL(ctx, prefix+"session:user-1").Result()
		require.NoError(t, err)
		require.Greater(t, ttl, 50*time.Minute)

		require.NoError(t, s.Sessions().ReplaceTokens(ctx, "user-1", "rt-1", storetest.Record("user-1", "rt-2").Tokens, nil))

		ttl, err = rdb.TTL(ctx, prefix+"session:user-1").Result()
		require.NoError(t, err)
		require.Greater(t, ttl, 50*time.Minute, "rotation keeps the ttl")
	})
}
