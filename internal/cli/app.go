package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"pixwebhook/internal/billing"
	"pixwebhook/internal/clients"
	"pixwebhook/internal/config"
	"pixwebhook/internal/database"
	"pixwebhook/internal/filestore"
	"pixwebhook/internal/logger"
	"pixwebhook/internal/notify"
	"pixwebhook/internal/parser"
	"pixwebhook/internal/pipeline"
	"pixwebhook/internal/reconciliation"
	"pixwebhook/internal/settlement"
)

// app holds the configured dependencies of one command invocation
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *database.DB
	closers []func() error
}

// loadApp reads and validates configuration and initializes logging.
// Logs go to logOut so stdout stays free for command results.
func loadApp(opts *options, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})
	return &app{cfg: cfg, log: log}, nil
}

// database opens the SQLite database on first use
func (a *app) database() (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if a.cfg.Store.DBPath == "" {
		return nil, errors.New("store.db_path is not set")
	}

	db, err := database.Open(a.cfg.Store.DBPath)
	if err != nil {
		a.log.Error("database_open_failed", "path", a.cfg.Store.DBPath, "error", err.Error())
		return nil, err
	}
	if err := db.Init(); err != nil {
		db.Close()
		a.log.Error("database_init_failed", "error", err.Error())
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

// repository returns the client store selected by store.backend
func (a *app) repository() (clients.Repository, error) {
	switch a.cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		return clients.NewStore(database.NewClientBackend(db)), nil
	default:
		return clients.NewStore(clients.NewFileBackend(a.cfg.Store.ClientsFile)), nil
	}
}

// notifier always logs; mail and Notion are added when configured
func (a *app) notifier() (notify.Notifier, error) {
	sinks := notify.Multi{notify.NewLogNotifier(a.log)}

	if smtpCfg := a.cfg.Notify.SMTP; smtpCfg.Host != "" {
		n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     smtpCfg.Host,
			Port:     smtpCfg.Port,
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			From:     smtpCfg.From,
			To:       smtpCfg.To,
		})
		if err != nil {
			return nil, fmt.Errorf("configure smtp notifier: %w", err)
		}
		sinks = append(sinks, n)
	}

	if nc := a.cfg.Notify.Notion; nc.Token != "" && nc.DatabaseID != "" {
		n, err := notify.NewNotionNotifier(notify.NewNotionPages(nc.Token), nc.DatabaseID)
		if err != nil {
			return nil, fmt.Errorf("configure notion notifier: %w", err)
		}
		sinks = append(sinks, n)
	}
	return sinks, nil
}

// archive returns nil when no destination is configured
func (a *app) archive(ctx context.Context) (filestore.Archiver, error) {
	var dests filestore.Archives

	if dir := a.cfg.Archive.Dir; dir != "" {
		s, err := filestore.New(dir)
		if err != nil {
			return nil, err
		}
		dests = append(dests, s)
	}
	if bucket := a.cfg.Archive.GCSBucket; bucket != "" {
		g, err := filestore.NewGCSArchive(ctx, bucket, a.cfg.Archive.GCSPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		dests = append(dests, g)
	}

	switch len(dests) {
	case 0:
		return nil, nil
	case 1:
		return dests[0], nil
	}
	return dests, nil
}

// pipeline wires every stage from configuration. Billing credentials are required.
func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	if err := a.cfg.ValidateBilling(); err != nil {
		return nil, err
	}

	repo, err := a.repository()
	if err != nil {
		return nil, err
	}
	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}
	archive, err := a.archive(ctx)
	if err != nil {
		return nil, fmt.Errorf("configure archive: %w", err)
	}

	engine := parser.NewEngine(a.log)
	engine.LearnAccountID = a.cfg.Forwarded.LearnAccountID

	blesta := billing.NewBlestaClient(billing.BlestaConfig{
		BaseURL:  a.cfg.Blesta.BaseURL,
		APIUser:  a.cfg.Blesta.APIUser,
		APIKey:   a.cfg.Blesta.APIKey,
		Currency: a.cfg.Blesta.Currency,
		Timeout:  a.cfg.Blesta.Timeout,
	}, a.log)

	pc := pipeline.Config{
		Engine:   engine,
		Resolver: clients.NewResolver(repo),
		Settler:  settlement.NewExecutor(blesta, reconciliation.Options{FlexibleRules: a.cfg.Reconcile.FlexibleRules}),
		Notifier: notifier,
		Archive:  archive,
	}
	// The ledger is optional for one-shot runs
	if a.cfg.Store.DBPath != "" {
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		pc.Ledger = db
	}
	return pipeline.New(pc), nil
}

// Close releases everything opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close_failed", "error", err.Error())
		}
	}
	a.closers = nil
}
