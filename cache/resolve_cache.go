package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"springlink/logger"
	"springlink/model"

	"github.com/redis/go-redis/v9"
)

// ResolveCache 解析结果的 Redis 缓存。同一查询在 TTL 内
// 不再打到节点的 loadtracks 端点。
type ResolveCache struct {
	ttl time.Duration
}

// NewResolveCache 创建解析缓存，ttl 为 0 时默认 10 分钟
func NewResolveCache(ttl time.Duration) *ResolveCache {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &ResolveCache{ttl: ttl}
}

func resolveKey(query string) string {
	return fmt.Sprintf("resolve:%s", query)
}

// GetResult 查缓存，未命中或反序列化失败都按未命中处理
func (c *ResolveCache) GetResult(ctx context.Context, query string) (*model.LoadResult, bool) {
	if RedisClient == nil {
		return nil, false
	}
	data, err := RedisClient.Get(ctx, resolveKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("resolve cache read failed", logger.ErrorField(err))
		}
		return nil, false
	}
	var result model.LoadResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// PutResult 写缓存，失败只记日志
func (c *ResolveCache) PutResult(ctx context.Context, query string, result *model.LoadResult) {
	if RedisClient == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := RedisClient.Set(ctx, resolveKey(query), data, c.ttl).Err(); err != nil {
		logger.Warn("resolve cache write failed", logger.ErrorField(err))
	}
}
