package storage

import (
	"context"
	"errors"
	"time"

	"PMentor/logger"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultNameTTL = 10 * time.Minute

// name key: name:<user>
func nameKey(user string) string { return "name:" + user }

// NameCache puts a read-through redis cache in front of a Directory's
// display names. Redis failures fall through to the directory; misses in
// the directory are not cached.
type NameCache struct {
	next store.Directory
	rdb  redis.UniversalClient
	ttl  time.Duration
}

func NewNameCache(next store.Directory, rdb redis.UniversalClient, ttl time.Duration) *NameCache {
	if ttl <= 0 {
		ttl = defaultNameTTL
	}
	return &NameCache{next: next, rdb: rdb, ttl: ttl}
}

func (c *NameCache) Lookup(ctx context.Context, userID string) (*model.Profile, error) {
	return c.next.Lookup(ctx, userID)
}

func (c *NameCache) DisplayName(ctx context.Context, userID string) (string, error) {
	name, err := c.rdb.Get(ctx, nameKey(userID)).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		logger.Warn("[name-cache] redis get failed", zap.String("user", userID), zap.Error(err))
	}

	name, err = c.next.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, nameKey(userID), name, c.ttl).Err(); err != nil {
		logger.Warn("[name-cache] redis set failed", zap.String("user", userID), zap.Error(err))
	}
	return name, nil
}

var _ store.Directory = (*NameCache)(nil)
