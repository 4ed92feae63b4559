package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"churchbook/internal/config"
	"churchbook/internal/core"
	"churchbook/internal/log"
	"churchbook/internal/storage/memory"
)

func writeSeed(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, memory.SeedFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("unknown backend should fail")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDirectory: "d"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Kind != SQLite || cfg.SQLitePath != "x.db" || cfg.SeedDirectory != "d" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Kind: Memory}, false},
		{"sqlite", Config{Kind: SQLite, SQLitePath: "a.db"}, false},
		{"sqlite without path", Config{Kind: SQLite}, true},
		{"unknown", Config{Kind: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenMemorySeedsRegistry(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "# comment\nRent\n\nRent\nMusic\n")

	b, err := NewOpener(log.Discard()).Open(context.Background(), Config{Kind: Memory, SeedDirectory: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Store.Close()

	if b.Seeded != 2 {
		t.Errorf("Seeded = %d, want 2", b.Seeded)
	}
	st, err := b.Store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.ExpenseCategories) != 2 || st.ExpenseCategories[0] != "Rent" || st.ExpenseCategories[1] != "Music" {
		t.Errorf("registry = %v", st.ExpenseCategories)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	b, err := NewOpener(log.Discard()).Open(context.Background(), Config{Kind: SQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Store.Close()

	ctx := context.Background()
	if err := b.Store.Save(ctx, core.State{ChurchName: "Grace"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err := b.Store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.ChurchName != "Grace" {
		t.Errorf("ChurchName = %q", st.ChurchName)
	}
}

func TestOpenSQLiteSeedsOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "Rent\nMusic\n")
	cfg := Config{Kind: SQLite, SQLitePath: filepath.Join(dir, "ledger.db"), SeedDirectory: dir}
	ctx := context.Background()

	b, err := NewOpener(log.Discard()).Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.Seeded != 2 {
		t.Errorf("first open Seeded = %d, want 2", b.Seeded)
	}
	if err := b.Store.Save(ctx, core.State{ExpenseCategories: []string{"Rent"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b.Store.Close()

	b, err = NewOpener(log.Discard()).Open(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Store.Close()
	if b.Seeded != 0 {
		t.Errorf("reopen Seeded = %d, want 0", b.Seeded)
	}
	st, err := b.Store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.ExpenseCategories) != 1 {
		t.Errorf("registry = %v, a saved registry must not be reseeded", st.ExpenseCategories)
	}
}
