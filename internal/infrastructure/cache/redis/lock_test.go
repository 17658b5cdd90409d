package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fraud-ledger/internal/pkg/config"
	"fraud-ledger/internal/pkg/lock"
)

func newTestLocker(t *testing.T) (*Locker, *Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(config.RedisConfig{Host: mr.Host(), Port: port, PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewLocker(client, "test:lock:", time.Minute, zaptest.NewLogger(t)), client, mr
}

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	l, client, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Lock(ctx, "projection:AccountProjection")
	require.NoError(t, err)

	token, err := client.Owner(ctx, "test:lock:projection:AccountProjection")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "projection:AccountProjection")
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	// other names are independent
	other, err := l.Lock(ctx, "projection:DeviceProjection")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Lock(ctx, "projection:AccountProjection")
	require.NoError(t, err)
	again()
}

func TestLocker_WaitsForHolder(t *testing.T) {
	l, _, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Lock(ctx, "scoring")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Lock(ctx, "scoring")
		if !assert.NoError(t, err) {
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired while the first still held the lock")
	case <-time.After(100 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestLocker_ExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	l, client, mr := newTestLocker(t)
	ctx := context.Background()

	stale, err := l.Lock(ctx, "rebuild")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	fresh, err := l.Lock(ctx, "rebuild")
	require.NoError(t, err)
	owner, err := client.Owner(ctx, "test:lock:rebuild")
	require.NoError(t, err)

	stale()
	still, err := client.Owner(ctx, "test:lock:rebuild")
	require.NoError(t, err)
	assert.Equal(t, owner, still)

	fresh()
	assert.False(t, mr.Exists("test:lock:rebuild"))
}

func TestClient_OwnerCheckedOperations(t *testing.T) {
	_, client, mr := newTestLocker(t)
	ctx := context.Background()

	ok, err := client.Claim(ctx, "k", "token-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.Claim(ctx, "k", "token-b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	held, err := client.Extend(ctx, "k", "token-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, held)

	held, err = client.Extend(ctx, "k", "token-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	released, err := client.Release(ctx, "k", "token-b")
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, mr.Exists("k"))

	released, err = client.Release(ctx, "k", "token-a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("k"))
}
