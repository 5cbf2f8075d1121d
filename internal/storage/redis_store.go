// internal/storage/redis_store.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Corphon/ScriptStudio/internal/utils"
)

// RedisStore 将记录保存为 Redis 字符串
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to url and pings the server, retrying a few times
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("解析 Redis 地址失败: %w", err)
	}

	const maxRetries = 5
	retryDelay := 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		cancel()
		if err == nil {
			utils.GetLogger().Info("connected to redis", map[string]interface{}{
				"addr":    opts.Addr,
				"db":      opts.DB,
				"attempt": attempt,
			})
			return &RedisStore{client: client, prefix: prefix}, nil
		}

		_ = client.Close()
		lastErr = err
		utils.GetLogger().Warn("redis ping failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("无法连接 Redis (%d 次尝试): %w", maxRetries, lastErr)
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get 读取记录
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取 Redis 记录失败: %w", err)
	}
	return val, true, nil
}

// Set 写入记录，不设置过期时间
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("写入 Redis 记录失败: %w", err)
	}
	return nil
}

// Delete 删除记录
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("删除 Redis 记录失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}
