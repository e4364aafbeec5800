package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sisyphus-worker/internal/config"
)

// RedisSource pops jobs from a redis list.
type RedisSource struct {
	client  *redis.Client
	queue   string
	timeout time.Duration
}

// NewRedisClient connects a client for the configured server.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.Addr(),
		DB:   cfg.DB,
	})
}

// NewRedisSource pops from queue, blocking for at most timeout per poll.
func NewRedisSource(client *redis.Client, queue string, timeout time.Duration) *RedisSource {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &RedisSource{client: client, queue: queue, timeout: timeout}
}

func (s *RedisSource) Describe() string {
	return fmt.Sprintf("redis queue '%s'", s.queue)
}

// Poll takes the oldest job from the list (producers LPUSH, the worker pops the tail).
func (s *RedisSource) Poll(ctx context.Context) (*Job, error) {
	res, err := s.client.BRPop(ctx, s.timeout, s.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected BRPOP reply %v", ErrTransport, res)
	}
	return Decode([]byte(res[1]))
}
