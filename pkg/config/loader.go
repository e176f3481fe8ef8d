// Package config fills configuration structs from the process environment.
//
// The first call loads a .env file from the working directory when one
// exists; variables already set in the environment win. Structs describe
// their variables with caarlos0/env tags:
//
//	type Config struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	    URL  string `env:"MONGODB_URL"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrNilPointer is returned when a nil pointer is provided to Load.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)

var dotenv sync.Once

// Load parses environment variables into v.
func Load[T any](v *T) error {
	return load(v, env.Options{})
}

// LoadPrefixed is Load with every variable name prefixed, e.g. "FG_".
func LoadPrefixed[T any](v *T, prefix string) error {
	return load(v, env.Options{Prefix: prefix})
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func load[T any](v *T, opts env.Options) error {
	dotenv.Do(func() {
		// A missing .env file is normal outside development.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.ParseWithOptions(v, opts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}
