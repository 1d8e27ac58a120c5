package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnhub/config"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned for absent keys and when no Redis is configured.
var ErrMiss = errors.New("cache miss")

type RedisClient struct {
	client *redis.Client
}

// Redis is the shared client; nil when REDIS_HOST is empty.
var Redis *RedisClient

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Connect installs the shared client when Redis is configured. A failed
// connection is logged by the caller and leaves caching off.
func Connect(cfg *config.Config) error {
	if cfg.RedisHost == "" {
		return nil
	}
	c, err := NewRedisClient(cfg)
	if err != nil {
		return err
	}
	Redis = c
	return nil
}

func (c *RedisClient) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	if c == nil {
		return "", ErrMiss
	}
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// QuestionSetKey is where the learner-facing question set of an assessment is cached
func QuestionSetKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:%d:questions", assessmentID)
}
