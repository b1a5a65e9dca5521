package localstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bakery-storefront/internal/xpkg/logger"

	"github.com/go-redis/redis/v8"
)

// Redis keeps each key under "storefront:<profile>:<key>".
type Redis struct {
	client    *redis.Client
	namespace string
	mylog     logger.Logger
}

func NewRedis(ctx context.Context, redisURL string, db int, profile string, mylog logger.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if db > 0 {
		opt.DB = db
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	mylog.Action("redis_connected").Info("Connected to Redis", "db", opt.DB, "profile", profile)
	return NewRedisWithClient(client, profile, mylog), nil
}

func NewRedisWithClient(client *redis.Client, profile string, mylog logger.Logger) *Redis {
	return &Redis{
		client:    client,
		namespace: "storefront:" + profile + ":",
		mylog:     mylog,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.namespace + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
