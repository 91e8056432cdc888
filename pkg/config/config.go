// Package config loads typed configuration structs from environment
// variables, optionally seeded from a .env file. Each component owns a
// config struct with env tags and loads it at wiring time.
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
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrNilPointer    = errors.New("nil pointer provided to config loader")
)

var (
	mu    sync.RWMutex
	cache = make(map[string]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into cfg based on its env tags. The
// first call of any type loads the default .env file (missing file is fine)
// and caches the parsed value, so every component sees the same snapshot.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := typeName[T]()

	mu.RLock()
	cached, ok := cache[key]
	mu.RUnlock()
	if ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	mu.Lock()
	// First writer wins so concurrent loaders agree on one snapshot.
	if cached, ok := cache[key]; ok {
		*cfg = cached.(T)
	} else {
		cache[key] = *cfg
	}
	mu.Unlock()

	return nil
}

// MustLoad is Load for configs the process cannot start without.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil {
		return t.String()
	}
	return fmt.Sprintf("%T", *new(T))
}
