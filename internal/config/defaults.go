package config

import "time"

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:     BackendFile,
			ClientsFile: "./data/clientes_pix.txt",
			DBPath:      "./data/pixwebhook.db",
		},
		Blesta: BlestaConfig{
			Currency: "BRL",
			Timeout:  30 * time.Second,
		},
		Reconcile: ReconcileConfig{
			FlexibleRules: true,
		},
		Forwarded: ForwardedConfig{
			LearnAccountID: true,
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{Port: 587},
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
			PollInterval: 2 * time.Second,
		},
	}
}
