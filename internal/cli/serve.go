package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pixwebhook/internal/auth"
	"pixwebhook/internal/handlers"
	"pixwebhook/internal/jobs"
	"pixwebhook/internal/logger"
	"pixwebhook/internal/models"
	"pixwebhook/internal/version"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive notifications over HTTP",
		Long: `Serve accepts raw notifications on POST /webhook, queues them in the
database and processes them one at a time in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg.Server

	db, err := a.database()
	if err != nil {
		return err
	}
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	worker := jobs.NewWorker(db, a.log, cfg.PollInterval)
	worker.Register(models.JobTypeProcessMessage, jobs.ProcessMessageHandler(p))
	worker.Start()
	defer worker.Stop()

	mux := http.NewServeMux()
	handlers.New(db, cfg.MaxBodyBytes).Routes(mux)

	authz := auth.New(cfg.Token)
	if !authz.Enabled() {
		a.log.Warn("server_auth_disabled")
	}

	// Wrap with middleware: logging -> auth -> mux
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           logger.HTTPMiddleware(authz.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("server_starting", "address", cfg.Addr, "version", version.Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server_failed", "error", err.Error())
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	a.log.Info("server_stopped")
	return nil
}
