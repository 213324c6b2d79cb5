package redis

import (
	"context"
	"sync"
	"time"

	"PMentor/global/config"
	"PMentor/tools/errs"

	"github.com/redis/go-redis/v9"
)

var (
	redisOnce sync.Once
	redisMgr  *RedisManager
)

type RedisManager struct {
	client *redis.Client
}

// New dials and pings a client without touching the process-wide instance.
func New(c config.RedisConfig) (*redis.Client, error) {
	if c.Addr == "" {
		return nil, errs.ErrArgs.WrapMsg("redis addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.WrapMsg(err, "redis ping failed", "addr", c.Addr)
	}
	return rdb, nil
}

// InitRedis 初始化 Redis 管理器（单例）
func InitRedis(c config.RedisConfig) error {
	var initErr error
	redisOnce.Do(func() {
		rdb, err := New(c)
		if err != nil {
			initErr = err
			return
		}
		redisMgr = &RedisManager{client: rdb}
	})
	return initErr
}

// GetRedis 获取 Redis Client
func GetRedis() *redis.Client {
	if redisMgr == nil {
		panic("Redis not initialized, call InitRedis first")
	}
	return redisMgr.client
}

// CloseRedis 关闭连接
func CloseRedis() error {
	if redisMgr != nil && redisMgr.client != nil {
		return redisMgr.client.Close()
	}
	return nil
}
