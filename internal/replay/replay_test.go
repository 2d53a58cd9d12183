package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telnyx-webhooks/internal/common/errors"
	"telnyx-webhooks/internal/redis"
)

func newRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestLocalStore_MarkSeen(t *testing.T) {
	store := NewLocalStore(time.Minute)
	ctx := context.Background()

	first, err := store.MarkSeen(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = store.MarkSeen(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, first)
	assert.Equal(t, 1, store.Len())

	time.Sleep(80 * time.Millisecond)

	first, err = store.MarkSeen(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, first)

	require.NoError(t, store.Forget(ctx, "k"))
	assert.Equal(t, 0, store.Len())
}

func TestLocalStore_ConcurrentDeliveries(t *testing.T) {
	store := NewLocalStore(time.Minute)

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if first, _ := store.MarkSeen(context.Background(), "same", time.Minute); first {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestRedisStore_MarkSeen(t *testing.T) {
	client, mr := newRedisClient(t)
	store := NewRedisStore(client, "webhooks:")
	ctx := context.Background()

	first, err := store.MarkSeen(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, mr.Exists("webhooks:k"))

	first, err = store.MarkSeen(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)

	mr.FastForward(2 * time.Minute)

	first, err = store.MarkSeen(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	require.NoError(t, store.Forget(ctx, "k"))
	assert.False(t, mr.Exists("webhooks:k"))
}

func TestNew(t *testing.T) {
	store, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(Config{Type: TypeRedis})
	assert.Error(t, err)

	client, _ := newRedisClient(t)
	store, err = New(Config{Type: TypeRedis, RedisClient: client, KeyPrefix: "x:"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)

	_, err = New(Config{Type: "memcached"})
	assert.Error(t, err)
}

var (
	sigA = []byte("signature-a")
	sigB = []byte("signature-b")
)

func TestGuard_Check(t *testing.T) {
	guard := NewGuard(NewLocalStore(time.Minute), 10*time.Minute)
	ctx := context.Background()

	assert.NoError(t, guard.Check(ctx, "1700000000", sigA))

	err := guard.Check(ctx, "1700000000", sigA)
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))

	assert.NoError(t, guard.Check(ctx, "1700000000", sigB))
	assert.NoError(t, guard.Check(ctx, "1700000001", sigA))
}

func TestGuard_Release(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedisClient(t)

	stores := map[string]Store{
		"local": NewLocalStore(time.Minute),
		"redis": NewRedisStore(client, "webhooks:"),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			guard := NewGuard(store, 10*time.Minute)

			require.NoError(t, guard.Check(ctx, "1700000000", sigA))
			require.NoError(t, guard.Release(ctx, "1700000000", sigA))

			assert.NoError(t, guard.Check(ctx, "1700000000", sigA))
			err := guard.Check(ctx, "1700000000", sigA)
			assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
		})
	}
}

func TestGuard_StoreFailure(t *testing.T) {
	client, mr := newRedisClient(t)
	guard := NewGuard(NewRedisStore(client, ""), time.Minute)

	mr.Close()

	err := guard.Check(context.Background(), "1", sigA)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))

	err = guard.Release(context.Background(), "1", sigA)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("1", sigA), Key("1", []byte("signature-a")))
	assert.NotEqual(t, Key("1", sigA), Key("1", sigB))
	assert.NotEqual(t, Key("1", sigA), Key("2", sigA))
	assert.Len(t, Key("1", sigA), len("replay:")+64)
}
