// Package config aggregates the application's environment configuration.
package config

import (
	"time"

	pkgconfig "github.com/CallMeMhz/feature-gating/pkg/config"
	"github.com/CallMeMhz/feature-gating/pkg/cookie"
	"github.com/CallMeMhz/feature-gating/pkg/environment"
	"github.com/CallMeMhz/feature-gating/pkg/httpserver"
	"github.com/CallMeMhz/feature-gating/pkg/mongo"
	"github.com/CallMeMhz/feature-gating/pkg/redis"
	"github.com/CallMeMhz/feature-gating/pkg/snapshot"
	"github.com/CallMeMhz/feature-gating/pkg/viewer"
)

type App struct {
	Name     string `env:"APP_NAME" envDefault:"feature-gating"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Environment parses Env, falling back to development.
func (a App) Environment() environment.Environment {
	return environment.Parse(a.Env)
}

// Pages bounds the per-page toast state the server keeps.
type Pages struct {
	// Capacity is the number of live pages tracked; the least recently
	// used page is dropped when it is exceeded.
	Capacity    int           `env:"PAGE_CACHE_SIZE" envDefault:"1024"`
	StreamBuf   int           `env:"PAGE_STREAM_BUFFER" envDefault:"64"`
	ToastRate   float64       `env:"TOAST_RATE" envDefault:"5"`
	ToastBurst  int           `env:"TOAST_BURST" envDefault:"10"`
	GuardWindow time.Duration `env:"SUBMIT_GUARD_WINDOW" envDefault:"3s"`
}

type Snapshots struct {
	CacheSize int `env:"SNAPSHOT_CACHE_SIZE" envDefault:"256"`
	Archive   snapshot.ArchiveConfig
}

type Config struct {
	App       App
	HTTP      httpserver.Config
	Mongo     mongo.Config
	Redis     redis.Config
	Cookie    cookie.Config
	Snapshots Snapshots
	Viewer    viewer.Config
	Pages     Pages
}

// Load reads Config from the environment and an optional .env file.
func Load() (Config, error) {
	var cfg Config
	if err := pkgconfig.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
