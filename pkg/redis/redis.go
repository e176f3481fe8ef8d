// Package redis opens Redis connections for the submission guard store.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
)

var (
	ErrEmptyConnectionURL = errors.New("redis: empty connection URL")
	ErrParseURL           = errors.New("redis: failed to parse connection URL")
	ErrNotReady           = errors.New("redis: not ready")
	ErrHealthcheckFailed  = errors.New("redis: healthcheck failed")
)

// Config is read from the environment by pkg/config. An empty ConnectionURL
// means Redis is not used.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

func (c Config) Enabled() bool { return c.ConnectionURL != "" }

// Connect parses the URL and pings until the server answers, RetryAttempts
// times at most, all within ConnectTimeout.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrParseURL, err)
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var (
		client  *redis.Client
		attempt int
	)
	backoff := retry.WithMaxRetries(uint64(max(cfg.RetryAttempts, 1)-1), retry.NewConstant(max(cfg.RetryInterval, time.Millisecond)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c := redis.NewClient(opts)
		err := c.Ping(ctx).Err()
		if err == nil {
			client = c
			return nil
		}
		_ = c.Close()
		log.WarnContext(ctx, "redis connect attempt failed", slog.Int("attempt", attempt), logger.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, errors.Join(ErrNotReady, err)
	}
	return client, nil
}

// Healthcheck pings the server.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
