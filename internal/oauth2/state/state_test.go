package state

import (
	"context"
	"encoding/base64"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dropDatabas3/oauth2client/internal/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		s, err := Generate()
		require.NoError(t, err)
		require.Len(t, s, 43)
		_, dup := seen[s]
		require.False(t, dup, "duplicate state %s", s)
		seen[s] = struct{}{}
	}

	s, _ := Generate()
	raw, err := base64.RawURLEncoding.DecodeString(s)
	require.NoError(t, err)
	assert.Len(t, raw, Size)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abcdefgh", Prefix("abcdefghijkl"))
	assert.Equal(t, "abc", Prefix("abc"))
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func stores(t *testing.T, clk *clock) map[string]Store {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]Store{
		"memory": NewCacheStore(cache.NewMemory("", 0), clk.now),
		"redis":  NewCacheStore(cache.NewRedisWithClient(rdb, "t"), clk.now),
	}
}

func TestStoreTakeOnce(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Now()}
	for name, s := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			rec := NewRecord("st", "google", clk.now(), time.Minute)
			require.NoError(t, s.Save(ctx, "sess", rec, time.Minute))

			got, err := s.Take(ctx, "sess")
			require.NoError(t, err)
			assert.Equal(t, "st", got.State)
			assert.Equal(t, "google", got.ConfigurationID)
			assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

			_, err = s.Take(ctx, "sess")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Now()}
	for name, s := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "sess", NewRecord("old", "google", clk.now(), 0), 0))
			require.NoError(t, s.Save(ctx, "sess", NewRecord("new", "github", clk.now(), 0), 0))
			got, err := s.Take(ctx, "sess")
			require.NoError(t, err)
			assert.Equal(t, "new", got.State)
			assert.Equal(t, "github", got.ConfigurationID)
		})
	}
}

func TestStoreExpiredRecord(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Now()}
	for name, s := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			// Backend TTL longer than the record so the record check decides.
			rec := NewRecord("st", "google", clk.now(), time.Second)
			require.NoError(t, s.Save(ctx, "sess", rec, time.Hour))
			clk.advance(2 * time.Second)

			_, err := s.Take(ctx, "sess")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreConcurrentTake(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Now()}
	for name, s := range stores(t, clk) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "sess", NewRecord("st", "google", clk.now(), 0), 0))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.Take(ctx, "sess"); err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("OAUTH2CLIENT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("OAUTH2CLIENT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	clk := &clock{t: time.Now().UTC().Truncate(time.Microsecond)}
	s := NewPostgresStore(pool, clk.now)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx))

	key := uuid.NewString()
	require.NoError(t, s.Save(ctx, key, NewRecord("st", "google", clk.now(), time.Minute), time.Minute))
	got, err := s.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "st", got.State)
	_, err = s.Take(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	expired := uuid.NewString()
	require.NoError(t, s.Save(ctx, expired, NewRecord("st", "google", clk.now(), time.Second), time.Second))
	clk.advance(time.Minute)
	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	_, err = s.Take(ctx, expired)
	assert.ErrorIs(t, err, ErrNotFound)
}
