package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
	mfaSetupKeyPrefix     = "mfa_setup:"
)

// RedisCache implements SessionCache on go-redis. Session entries carry their
// own TTL; the per-user index set tracks which session keys belong to a user
// so bulk eviction is a set scan, not a keyspace scan.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) PutSession(ctx context.Context, tokenHash string, e SessionEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired, nothing to cache
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+tokenHash, payload, ttl)
	pipe.SAdd(ctx, userSessionsKeyPrefix+e.UserID, tokenHash)
	// The index TTL only ever grows, so the set outlives its longest-lived
	// member: a short-lived login must never cut the index down below a
	// cached remember-me entry, or bulk eviction would miss it. Stale
	// members are pruned on bulk eviction.
	pipe.ExpireNX(ctx, userSessionsKeyPrefix+e.UserID, ttl)
	pipe.ExpireGT(ctx, userSessionsKeyPrefix+e.UserID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) GetSession(ctx context.Context, tokenHash string) (SessionEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, sessionKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionEntry{}, false, nil
	}
	if err != nil {
		return SessionEntry{}, false, err
	}

	var e SessionEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Treat a corrupt entry as a miss and drop it.
		_ = c.rdb.Del(ctx, sessionKeyPrefix+tokenHash).Err()
		return SessionEntry{}, false, nil
	}
	return e, true, nil
}

func (c *RedisCache) DeleteSession(ctx context.Context, tokenHash string) error {
	return c.rdb.Del(ctx, sessionKeyPrefix+tokenHash).Err()
}

func (c *RedisCache) DeleteUserSessions(ctx context.Context, userID string) error {
	setKey := userSessionsKeyPrefix + userID
	hashes, err := c.rdb.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, sessionKeyPrefix+h)
	}
	keys = append(keys, setKey)
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *RedisCache) PutPendingMFASetup(ctx context.Context, userID string, p PendingMFASetup, ttl time.Duration) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, mfaSetupKeyPrefix+userID, payload, ttl).Err()
}

func (c *RedisCache) GetPendingMFASetup(ctx context.Context, userID string) (PendingMFASetup, bool, error) {
	raw, err := c.rdb.Get(ctx, mfaSetupKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingMFASetup{}, false, nil
	}
	if err != nil {
		return PendingMFASetup{}, false, err
	}

	var p PendingMFASetup
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = c.rdb.Del(ctx, mfaSetupKeyPrefix+userID).Err()
		return PendingMFASetup{}, false, nil
	}
	return p, true, nil
}

func (c *RedisCache) DeletePendingMFASetup(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, mfaSetupKeyPrefix+userID).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error { return c.rdb.Close() }
