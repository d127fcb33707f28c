package config

import "time"

// Config is the full pixwebhook configuration
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Blesta    BlestaConfig    `yaml:"blesta" mapstructure:"blesta"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Forwarded ForwardedConfig `yaml:"forwarded" mapstructure:"forwarded"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or text
}

// StoreConfig selects where client records live
type StoreConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // file or sqlite
	ClientsFile string `yaml:"clients_file" mapstructure:"clients_file"`
	// DBPath is the SQLite database for the job queue, the settlement ledger
	// and the sqlite client backend
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// BlestaConfig holds billing API access
type BlestaConfig struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	APIUser  string        `yaml:"api_user" mapstructure:"api_user"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Currency string        `yaml:"currency" mapstructure:"currency"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ReconcileConfig toggles the invoice matching rules
type ReconcileConfig struct {
	// FlexibleRules enables tolerance, sum and partial-sum matching
	FlexibleRules bool `yaml:"flexible_rules" mapstructure:"flexible_rules"`
}

// ForwardedConfig controls forwarded message handling
type ForwardedConfig struct {
	LearnAccountID bool `yaml:"learn_account_id" mapstructure:"learn_account_id"`
}

// NotifyConfig configures operator notifications. The log sink is always on.
type NotifyConfig struct {
	SMTP   SMTPConfig   `yaml:"smtp" mapstructure:"smtp"`
	Notion NotionConfig `yaml:"notion" mapstructure:"notion"`
}

// SMTPConfig is enabled when Host is set
type SMTPConfig struct {
	Host     string   `yaml:"host" mapstructure:"host"`
	Port     int      `yaml:"port" mapstructure:"port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to" mapstructure:"to"`
}

// NotionConfig is enabled when Token and DatabaseID are set
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// ArchiveConfig keeps raw inbound messages. Both destinations are optional.
type ArchiveConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	GCSBucket string `yaml:"gcs_bucket" mapstructure:"gcs_bucket"`
	GCSPrefix string `yaml:"gcs_prefix" mapstructure:"gcs_prefix"`
}

// ServerConfig configures the webhook server
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	Token        string        `yaml:"token" mapstructure:"token"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}
