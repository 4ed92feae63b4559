package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"churchbook/internal/config"
	"churchbook/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CHURCHBOOK_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHURCHBOOK_TEST_VALUE", "")
	os.Unsetenv("CHURCHBOOK_TEST_VALUE")

	LoadEnvFile(path)
	if got := os.Getenv("CHURCHBOOK_TEST_VALUE"); got != "from-file" {
		t.Errorf("value = %q, want from-file", got)
	}

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("LEDGER_CURRENCY", "KRW")
	if _, err := LoadAndValidateConfig(); err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}

	t.Setenv("DATA_BACKEND", "postgres")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Error("invalid backend should fail validation")
	}
}

func TestOpenLedgerMemory(t *testing.T) {
	cfg := config.Load()
	cfg.DataBackend = "memory"
	cfg.DataDirectory = t.TempDir()
	cfg.TimeZone = "UTC"

	svc, err := OpenLedger(context.Background(), cfg, log.Discard(), nil)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer svc.Close()

	if got := svc.State(context.Background()).ExpenseCategories; len(got) == 0 {
		t.Error("memory backend without a seed file should fall back to the default registry")
	}
}

func TestOpenLedgerRejectsBadLocale(t *testing.T) {
	cfg := config.Load()
	cfg.DataBackend = "memory"
	cfg.DataDirectory = t.TempDir()
	cfg.Locale = "not a locale!"

	if _, err := OpenLedger(context.Background(), cfg, log.Discard(), nil); err == nil {
		t.Error("expected locale error")
	}
}

func TestNewAMQPClientDisabled(t *testing.T) {
	cfg := config.Load()
	cfg.AMQPURL = ""
	client, err := NewAMQPClient(cfg, log.Discard())
	if err != nil || client != nil {
		t.Errorf("disabled AMQP: client=%v err=%v", client, err)
	}
}
