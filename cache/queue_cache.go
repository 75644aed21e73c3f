package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"springlink/model"

	"github.com/redis/go-redis/v9"
)

// QueueCache 每租户队列快照。进程重启后新会话可从快照恢复队列。
type QueueCache struct{}

// NewQueueCache 创建队列快照存储
func NewQueueCache() *QueueCache {
	return &QueueCache{}
}

func queueKey(guildID string) string {
	return fmt.Sprintf("queue:%s", guildID)
}

// SaveQueue 整体覆盖队列快照
func (c *QueueCache) SaveQueue(ctx context.Context, guildID string, tracks []model.Track) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if len(tracks) == 0 {
		return RedisClient.Del(ctx, queueKey(guildID)).Err()
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("marshal queue snapshot: %w", err)
	}
	return RedisClient.Set(ctx, queueKey(guildID), data, 0).Err()
}

// LoadQueue 读取队列快照，不存在时返回空
func (c *QueueCache) LoadQueue(ctx context.Context, guildID string) ([]model.Track, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	data, err := RedisClient.Get(ctx, queueKey(guildID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tracks []model.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("unmarshal queue snapshot: %w", err)
	}
	return tracks, nil
}

// DropQueue 删除队列快照（会话销毁时）
func (c *QueueCache) DropQueue(ctx context.Context, guildID string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return RedisClient.Del(ctx, queueKey(guildID)).Err()
}
