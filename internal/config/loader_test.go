package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Store.Backend != BackendFile {
		t.Errorf("Expected file backend, got %q", cfg.Store.Backend)
	}
	if cfg.Blesta.Timeout != 30*time.Second {
		t.Errorf("Expected 30s billing timeout, got %v", cfg.Blesta.Timeout)
	}
	if cfg.Blesta.Currency != "BRL" {
		t.Errorf("Expected BRL, got %q", cfg.Blesta.Currency)
	}
	if !cfg.Reconcile.FlexibleRules {
		t.Error("Expected flexible rules enabled by default")
	}
	if !cfg.Forwarded.LearnAccountID {
		t.Error("Expected account id learning enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixwebhook.yaml")
	content := `
log:
  level: debug
store:
  backend: SQLite
  db_path: /var/lib/pix/pix.db
blesta:
  base_url: https://billing.example.com/api
  api_user: pix
  timeout: 5s
reconcile:
  flexible_rules: false
notify:
  smtp:
    host: mail.example.com
    to: [ops@example.com]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PIXWEBHOOK_BLESTA_API_KEY", "from-env")
	t.Setenv("PIXWEBHOOK_SERVER_ADDR", ":9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.DBPath != "/var/lib/pix/pix.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Blesta.Timeout != 5*time.Second {
		t.Errorf("blesta.timeout = %v", cfg.Blesta.Timeout)
	}
	if cfg.Blesta.APIKey != "from-env" {
		t.Errorf("blesta.api_key = %q, want env override", cfg.Blesta.APIKey)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Reconcile.FlexibleRules {
		t.Error("flexible_rules should be off")
	}
	if cfg.Blesta.Currency != "BRL" {
		t.Errorf("unset keys keep defaults, currency = %q", cfg.Blesta.Currency)
	}
	if len(cfg.Notify.SMTP.To) != 1 || cfg.Notify.SMTP.Port != 587 {
		t.Errorf("smtp = %+v", cfg.Notify.SMTP)
	}
	if err := cfg.ValidateBilling(); err != nil {
		t.Errorf("ValidateBilling: %v", err)
	}
}

func TestLoadPlainLogLevelEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for an explicit config path that does not exist")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Store.Backend = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("Validate = %v", err)
	}

	err := DefaultConfig().ValidateBilling()
	if err == nil {
		t.Fatal("expected missing billing settings")
	}
	for _, key := range []string{"blesta.base_url", "blesta.api_user", "blesta.api_key"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestMasked(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Blesta.APIKey = "secret"
	cfg.Server.Token = "tok"
	cfg.Notify.SMTP.To = []string{"a@example.com"}

	m := cfg.Masked()
	if m.Blesta.APIKey != masked || m.Server.Token != masked {
		t.Errorf("secrets not masked: %+v", m)
	}
	if m.Notify.SMTP.Password != "" {
		t.Error("empty secrets stay empty")
	}
	if cfg.Blesta.APIKey != "secret" {
		t.Error("Masked must not modify the original")
	}
}
