// Package mongo opens MongoDB connections for the snapshot and project stores.
package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
)

var (
	ErrEmptyConnectionURL = errors.New("mongo: empty connection URL")
	ErrConnect            = errors.New("mongo: failed to connect")
	ErrHealthcheckFailed  = errors.New("mongo: healthcheck failed")
)

// Config is read from the environment by pkg/config. An empty ConnectionURL
// means MongoDB is not used.
type Config struct {
	ConnectionURL   string        `env:"MONGODB_URL"`
	Database        string        `env:"MONGODB_DATABASE" envDefault:"feature_gating"`
	ConnectTimeout  time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryAttempts   int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool { return c.ConnectionURL != "" }

// Connect dials MongoDB and pings it, retrying up to RetryAttempts times.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*mongo.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	if log == nil {
		log = logger.Discard()
	}

	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	var (
		client  *mongo.Client
		attempt int
	)
	backoff := retry.WithMaxRetries(uint64(max(cfg.RetryAttempts, 1)-1), retry.NewConstant(max(cfg.RetryInterval, time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := mongo.Connect(opts)
		if err == nil {
			if err = c.Ping(ctx, nil); err == nil {
				client = c
				return nil
			}
			_ = c.Disconnect(context.WithoutCancel(ctx))
		}
		log.WarnContext(ctx, "mongo connect attempt failed", slog.Int("attempt", attempt), logger.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, errors.Join(ErrConnect, err)
	}
	return client, nil
}

// Healthcheck pings the server.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
