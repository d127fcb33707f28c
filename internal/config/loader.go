package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Client store backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

const (
	envPrefix     = "PIXWEBHOOK"
	configPathEnv = "PIXWEBHOOK_CONFIG"
	masked        = "********"
)

// Load merges defaults, an optional YAML file and PIXWEBHOOK_* environment
// variables, in increasing precedence. An empty path falls back to
// $PIXWEBHOOK_CONFIG; with neither set only defaults and env apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the plain LOG_LEVEL variable keeps working
	if err := v.BindEnv("log.level", envPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("bind log level: %w", err)
	}

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// keys that never appear in a file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.clients_file", cfg.Store.ClientsFile)
	v.SetDefault("store.db_path", cfg.Store.DBPath)

	v.SetDefault("blesta.base_url", cfg.Blesta.BaseURL)
	v.SetDefault("blesta.api_user", cfg.Blesta.APIUser)
	v.SetDefault("blesta.api_key", cfg.Blesta.APIKey)
	v.SetDefault("blesta.currency", cfg.Blesta.Currency)
	v.SetDefault("blesta.timeout", cfg.Blesta.Timeout)

	v.SetDefault("reconcile.flexible_rules", cfg.Reconcile.FlexibleRules)
	v.SetDefault("forwarded.learn_account_id", cfg.Forwarded.LearnAccountID)

	v.SetDefault("notify.smtp.host", cfg.Notify.SMTP.Host)
	v.SetDefault("notify.smtp.port", cfg.Notify.SMTP.Port)
	v.SetDefault("notify.smtp.username", cfg.Notify.SMTP.Username)
	v.SetDefault("notify.smtp.password", cfg.Notify.SMTP.Password)
	v.SetDefault("notify.smtp.from", cfg.Notify.SMTP.From)
	v.SetDefault("notify.smtp.to", cfg.Notify.SMTP.To)
	v.SetDefault("notify.notion.token", cfg.Notify.Notion.Token)
	v.SetDefault("notify.notion.database_id", cfg.Notify.Notion.DatabaseID)

	v.SetDefault("archive.dir", cfg.Archive.Dir)
	v.SetDefault("archive.gcs_bucket", cfg.Archive.GCSBucket)
	v.SetDefault("archive.gcs_prefix", cfg.Archive.GCSPrefix)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.poll_interval", cfg.Server.PollInterval)
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.ClientsFile == "" {
			errs = append(errs, errors.New("store.clients_file is required for the file backend"))
		}
	case BackendSQLite:
		if c.Store.DBPath == "" {
			errs = append(errs, errors.New("store.db_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Store.Backend))
	}
	if c.Blesta.Timeout <= 0 {
		errs = append(errs, errors.New("blesta.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateBilling checks the billing API settings needed to settle payments
func (c *Config) ValidateBilling() error {
	var missing []string
	if c.Blesta.BaseURL == "" {
		missing = append(missing, "blesta.base_url")
	}
	if c.Blesta.APIUser == "" {
		missing = append(missing, "blesta.api_user")
	}
	if c.Blesta.APIKey == "" {
		missing = append(missing, "blesta.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("billing API not configured, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Masked returns a copy with secrets replaced, for display
func (c *Config) Masked() *Config {
	m := *c
	m.Notify.SMTP.To = append([]string(nil), c.Notify.SMTP.To...)
	mask(&m.Blesta.APIKey)
	mask(&m.Notify.SMTP.Password)
	mask(&m.Notify.Notion.Token)
	mask(&m.Server.Token)
	return &m
}

func mask(s *string) {
	if *s != "" {
		*s = masked
	}
}
