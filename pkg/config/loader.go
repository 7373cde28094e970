package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer    = errors.New("config: Load needs a non-nil pointer")
	ErrParsingConfig = errors.New("config: parse environment")
	ErrInvalidConfig = errors.New("config: validation failed")
	ErrEnvFile       = errors.New("config: read env file")
)

// Validator is implemented by config structs that check themselves after parsing.
type Validator interface {
	Validate() error
}

var (
	cache   sync.Map // reflect.Type -> any
	loadMu  sync.Mutex
	envOnce sync.Once
)

// Load parses environment variables into v according to its `env` tags.
// The first call reads .env from the working directory if present. Each type
// is parsed once; later calls copy the cached value.
//
//	var cfg twofactor.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	envOnce.Do(func() {
		// a missing .env is fine
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()
	if cached, ok := cache.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	loadMu.Lock()
	defer loadMu.Unlock()
	if cached, ok := cache.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(&parsed).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}

	cache.Store(key, parsed)
	*v = parsed
	return nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv reads the given dotenv files without overriding variables already
// set in the process environment.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrEnvFile, err)
	}
	return nil
}

// ResetCache forgets every loaded type. Tests use it between t.Setenv calls.
func ResetCache() {
	cache.Clear()
}
