package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
)

const revokedKeyPrefix = "quizforge:revoked:"

// Open connects to Redis and checks the connection.
func Open(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

type redisBlacklist struct {
	rdb *redis.Client
}

var _ core.TokenBlacklist = (*redisBlacklist)(nil)

func NewRedisBlacklist(rdb *redis.Client) core.TokenBlacklist {
	return &redisBlacklist{rdb: rdb}
}

// Revoke stores jti until ttl elapses; a non-positive ttl is a no-op since the token already expired.
func (b *redisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return errors.Wrap(b.rdb.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(), "revoking token")
}

func (b *redisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}
