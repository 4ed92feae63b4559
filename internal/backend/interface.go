// Package backend opens the storage.Store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"slices"

	"churchbook/internal/config"
	"churchbook/internal/storage"
)

// Kind names a storage backend.
type Kind string

const (
	SQLite Kind = "sqlite"
	Memory Kind = "memory"
)

// Kinds returns every supported backend.
func Kinds() []Kind {
	return []Kind{SQLite, Memory}
}

func (k Kind) Valid() bool {
	return slices.Contains(Kinds(), k)
}

// Config selects and locates the store.
type Config struct {
	Kind       Kind
	SQLitePath string
	// SeedDirectory holds the expense category seed file. A store that has
	// never saved a registry is seeded from it.
	SeedDirectory string
}

// FromAppConfig picks the backend fields out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Kind:          Kind(cfg.DataBackend),
		SQLitePath:    cfg.SQLiteDBPath,
		SeedDirectory: cfg.DataDirectory,
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Kind, Kinds())
	}
	if c.Kind == SQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLite database path is required for the sqlite backend")
	}
	return nil
}

// Backend is an opened store. Closing the store releases everything the
// backend holds.
type Backend struct {
	Store storage.Store
	Kind  Kind
	// Seeded is the number of expense categories written from the seed file.
	Seeded int
}

// Opener opens stores.
type Opener interface {
	Open(ctx context.Context, cfg Config) (*Backend, error)
}
