package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Validator is implemented by configs with rules env tags cannot express.
type Validator interface {
	Validate() error
}

// Load parses the process environment into a new T. The first call also
// loads .env from the working directory; a missing file is not an error.
// When T implements Validator, the parsed value is validated.
//
//	type WorkerConfig struct {
//		Channel string `env:"WORKER_CHANNEL" envDefault:"email"`
//	}
//
//	cfg, err := config.Load[WorkerConfig]()
func Load[T any]() (T, error) {
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})
	return parse[T](env.Options{})
}

// LoadFrom parses environ instead of the process environment. Intended for tests.
func LoadFrom[T any](environ map[string]string) (T, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse[T](env.Options{Environment: environ})
}

// LoadFiles loads the given dotenv files, without overriding variables that
// are already set, then behaves like Load.
func LoadFiles[T any](files ...string) (T, error) {
	if err := godotenv.Load(files...); err != nil {
		var zero T
		return zero, errors.Join(ErrLoadingEnvFile, err)
	}
	return parse[T](env.Options{})
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

func parse[T any](opts env.Options) (T, error) {
	cfg, err := env.ParseAsWithOptions[T](opts)
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}

	if v, ok := any(cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			var zero T
			return zero, errors.Join(ErrInvalidConfig, err)
		}
	}
	return cfg, nil
}
