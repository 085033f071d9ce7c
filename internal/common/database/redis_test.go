package database

import (
	"context"
	"testing"
	"time"

	"founder-scheduler/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisClient_RoundTrip(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Set(ctx, "geo:berlin", []byte(`{"latitude":52.52}`), time.Minute))

	val, err := client.Get(ctx, "geo:berlin")
	require.NoError(t, err)
	assert.JSONEq(t, `{"latitude":52.52}`, string(val))
	assert.Equal(t, time.Minute, mr.TTL("geo:berlin"))

	require.NoError(t, client.Del(ctx, "geo:berlin"))
	_, err = client.Get(ctx, "geo:berlin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisClient_Expiry(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisClient_PingFailure(t *testing.T) {
	client, mr := newTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, client.Ping(ctx))
}
