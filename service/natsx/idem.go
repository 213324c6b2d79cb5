package natsx

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdemStore answers whether a message key was already handled within ttl.
type IdemStore interface {
	SeenOnce(ctx context.Context, key string, ttl time.Duration) (seen bool, err error)
}

// ----- 内存实现（单进程） -----

const memSweepEvery = 1024

type memIdem struct {
	mu     sync.Mutex
	m      map[string]time.Time // key -> expire
	ttl    time.Duration
	now    func() time.Time
	writes int
}

func NewMemIdem(defaultTTL time.Duration) IdemStore {
	return &memIdem{m: make(map[string]time.Time), ttl: defaultTTL, now: time.Now}
}

func (mi *memIdem) SeenOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	mi.mu.Lock()
	defer mi.mu.Unlock()
	now := mi.now()
	if exp, ok := mi.m[key]; ok && exp.After(now) {
		return true, nil
	}
	mi.m[key] = now.Add(ttl)
	// 写够一定次数顺手清理过期 key，不起后台协程
	if mi.writes++; mi.writes%memSweepEvery == 0 {
		for k, exp := range mi.m {
			if !exp.After(now) {
				delete(mi.m, k)
			}
		}
	}
	return false, nil
}

// ----- Redis 实现（多实例共享） -----

type redisIdem struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisIdem dedups across relay instances with SET NX.
func NewRedisIdem(rdb redis.UniversalClient, prefix string, defaultTTL time.Duration) IdemStore {
	return &redisIdem{rdb: rdb, prefix: prefix, ttl: defaultTTL}
}

func (ri *redisIdem) SeenOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = ri.ttl
	}
	fresh, err := ri.rdb.SetNX(ctx, ri.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

func msgIDFromHeader(h map[string]string) string {
	for _, k := range []string{HeaderMsgID, "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// IdemMiddleware drops messages whose id was already seen. Messages without an
// id pass straight through: equal payloads (typing on/off/on, a second read
// receipt) are legitimate repeats. A store error lets the message through.
func IdemMiddleware(store IdemStore, ttl time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			id := msgIDFromHeader(msg.Header)
			if id == "" {
				return next(ctx, msg)
			}
			if seen, err := store.SeenOnce(ctx, msg.Subject+"|"+id, ttl); err == nil && seen {
				return nil
			}
			return next(ctx, msg)
		}
	}
}
