package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*RedisTurnLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lock, err := NewRedisTurnLock(client, time.Minute)
	require.NoError(t, err)
	return lock, mr
}

func TestNewRedisTurnLock_RequiresClient(t *testing.T) {
	_, err := NewRedisTurnLock(nil, 0)
	require.Error(t, err)
}

func TestRedisTurnLock_ExclusiveUntilReleased(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("chat:turn:s1"))
	require.Equal(t, time.Minute, mr.TTL("chat:turn:s1"))

	_, ok, err = lock.Acquire(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)

	other, ok, err := lock.Acquire(ctx, "s2")
	require.NoError(t, err)
	require.True(t, ok)
	other()

	release()
	require.False(t, mr.Exists("chat:turn:s1"))

	again, ok, err := lock.Acquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	again()
}

func TestRedisTurnLock_ReleaseKeepsForeignLock(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	// The lock expired and another instance took it.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("chat:turn:s1", "someone-else"))

	release()
	got, err := mr.Get("chat:turn:s1")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestRedisTurnLock_ErrorWhenUnavailable(t *testing.T) {
	lock, mr := newTestLock(t)
	mr.Close()

	_, ok, err := lock.Acquire(context.Background(), "s1")
	require.Error(t, err)
	require.False(t, ok)
}
