package presence

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Presence 用户在线状态协作方。
// 网关在连接建立/断开时调用；断开即置离线（未按连接数引用计数，
// 多端场景的修正应在本接口的实现中完成）。
type Presence interface {
	SetOnline(ctx context.Context, userID uint64, nodeID string, ttl time.Duration) error
	SetOffline(ctx context.Context, userID uint64) error
	IsOnline(ctx context.Context, userID uint64) (bool, error)
}

// RedisPresence 基于 Redis 的在线状态实现，值为所在网关节点ID
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func onlineKey(userID uint64) string {
	return fmt.Sprintf("im:online:%d", userID)
}

func (p *RedisPresence) SetOnline(ctx context.Context, userID uint64, nodeID string, ttl time.Duration) error {
	return p.client.Set(ctx, onlineKey(userID), nodeID, ttl).Err()
}

func (p *RedisPresence) SetOffline(ctx context.Context, userID uint64) error {
	return p.client.Del(ctx, onlineKey(userID)).Err()
}

func (p *RedisPresence) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	n, err := p.client.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
