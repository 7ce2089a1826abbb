package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configures DialRedis.
type RedisOptions struct {
	URL string
	// DB overrides the database selected by URL when in 0-15.
	DB int
	// Timeout bounds each connection attempt. Defaults to 5s.
	Timeout time.Duration
	// Attempts is the number of pings before giving up. Defaults to 3.
	Attempts int
	// Backoff is multiplied by the attempt number between pings. Defaults to 1s.
	Backoff time.Duration
	Logger  Logger
}

// DialRedis parses opts.URL, applies pool settings and verifies the
// connection with retried pings. A bad URL is a configuration error; an
// unreachable server wraps ErrConnectionFailed.
func DialRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	if opts.URL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", ErrMissingConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.URL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":     err.Error(),
			"redis_url": opts.URL,
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}
	if opts.DB > 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	redisOpt.PoolSize = 10
	redisOpt.MinIdleConns = 2
	redisOpt.MaxRetries = 3
	redisOpt.MinRetryBackoff = 100 * time.Millisecond
	redisOpt.MaxRetryBackoff = time.Second
	redisOpt.DialTimeout = timeout
	redisOpt.ReadTimeout = timeout
	redisOpt.WriteTimeout = timeout

	client := redis.NewClient(redisOpt)

	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			break
		}

		logger.Warn("Redis ping failed", map[string]interface{}{
			"attempt": i + 1,
			"error":   err.Error(),
		})
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err())
		case <-time.After(time.Duration(i+1) * backoff):
		}
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %v: %w", attempts, err, ErrConnectionFailed)
	}

	logger.Debug("Redis connection established", map[string]interface{}{
		"addr": redisOpt.Addr,
		"db":   redisOpt.DB,
	})
	return client, nil
}
