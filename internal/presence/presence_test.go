package presence

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestRedisPresence_OnlineOffline(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	p := NewRedisPresence(client)
	ctx := context.Background()

	online, err := p.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, p.SetOnline(ctx, 42, "node-1", time.Minute))

	online, err = p.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.True(t, online)

	// value carries the gateway node id
	val, err := mr.Get("im:online:42")
	require.NoError(t, err)
	assert.Equal(t, "node-1", val)

	require.NoError(t, p.SetOffline(ctx, 42))

	online, err = p.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisPresence_TTLExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	p := NewRedisPresence(client)
	ctx := context.Background()

	require.NoError(t, p.SetOnline(ctx, 7, "node-2", 30*time.Second))

	ttl := mr.TTL("im:online:7")
	assert.Equal(t, 30*time.Second, ttl)

	// a stale entry disappears once the heartbeat stops refreshing it
	mr.FastForward(31 * time.Second)

	online, err := p.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisPresence_SetOnlineRefreshesNode(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	p := NewRedisPresence(client)
	ctx := context.Background()

	require.NoError(t, p.SetOnline(ctx, 9, "node-1", time.Minute))
	// reconnect lands on another node
	require.NoError(t, p.SetOnline(ctx, 9, "node-3", time.Minute))

	val, err := mr.Get("im:online:9")
	require.NoError(t, err)
	assert.Equal(t, "node-3", val)
}

func TestRedisPresence_SetOfflineIdempotent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	p := NewRedisPresence(client)
	assert.NoError(t, p.SetOffline(context.Background(), 1000))
}
