package backend

import (
	"context"
	"fmt"

	"churchbook/internal/log"
	"churchbook/internal/storage"
	"churchbook/internal/storage/memory"
)

type opener struct {
	logger *log.Logger
}

func NewOpener(logger *log.Logger) Opener {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &opener{logger: logger.WithComponent(log.ComponentBackend)}
}

// Open opens the store selected by cfg.
func (o *opener) Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case SQLite:
		return o.openSQLite(ctx, cfg)
	case Memory:
		return o.openMemory(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Kind)
	}
}

func (o *opener) openSQLite(ctx context.Context, cfg Config) (*Backend, error) {
	store, err := storage.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	version, dirty, err := storage.SchemaVersion(cfg.SQLitePath)
	if err != nil {
		o.logger.WarnContext(ctx, "Could not read schema version", log.FieldError, err)
	}

	seeded, err := seedRegistry(ctx, store, cfg.SeedDirectory)
	if err != nil {
		store.Close()
		return nil, err
	}
	o.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", cfg.SQLitePath,
		"schema_version", version,
		"schema_dirty", dirty,
		"seeded_categories", seeded)

	return &Backend{Store: store, Kind: SQLite, Seeded: seeded}, nil
}

func (o *opener) openMemory(ctx context.Context, cfg Config) (*Backend, error) {
	dir := cfg.SeedDirectory
	if dir == "" {
		dir = "data"
	}
	seed := memory.ReadSeed(dir)
	o.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dir, "seeded_categories", len(seed))
	return &Backend{Store: memory.New(seed), Kind: Memory, Seeded: len(seed)}, nil
}

// seedRegistry writes the seed categories into a store that has never saved
// an expense registry.
func seedRegistry(ctx context.Context, store storage.Store, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	seed := memory.ReadSeed(dir)
	if seed == nil {
		return 0, nil
	}
	st, err := store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state for seeding: %w", err)
	}
	if st.ExpenseCategories != nil {
		return 0, nil
	}
	st.ExpenseCategories = seed
	if err := store.Save(ctx, st); err != nil {
		return 0, fmt.Errorf("seed expense categories: %w", err)
	}
	return len(seed), nil
}
