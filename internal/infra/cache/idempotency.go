package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// 注文作成中のロック: idem:order:{user_id}:{key}
	KeyIdemOrder = "idem:order:%d:%s"

	TTLIdempotency = 24 * time.Hour
)

// usecase.IdempotencyLock のRedis実装（SET NX）
type IdempotencyLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyLock(rdb *redis.Client) *IdempotencyLock {
	return &IdempotencyLock{rdb: rdb, ttl: TTLIdempotency}
}

func (l *IdempotencyLock) Acquire(ctx context.Context, userID int64, key string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, idemKey(userID, key), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (l *IdempotencyLock) Release(ctx context.Context, userID int64, key string) error {
	return l.rdb.Del(ctx, idemKey(userID, key)).Err()
}

func idemKey(userID int64, key string) string {
	return fmt.Sprintf(KeyIdemOrder, userID, key)
}
