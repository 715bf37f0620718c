// Command libraryd serves the library borrowing REST API on top of PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonStoeckl/library-borrowing-go/httpapi"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("libraryd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := newObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer obs.shutdown(cfg.ShutdownTimeout)

	logger := obs.logger
	logger.Info("starting libraryd",
		"db_adapter", string(cfg.DBAdapter),
		"http_addr", cfg.HTTPAddr,
		"path_prefix", cfg.PathPrefix,
		"observability", cfg.ObservabilityEnabled,
	)

	db, err := openDatabase(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer db.close()

	if err = db.engine.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database schema: %w", err)
	}

	books := bookservice.NewService(db.engine, obs.bookServiceOptions()...)
	borrowings := borrowing.NewService(db.engine, books, obs.borrowingServiceOptions()...)

	handlerOptions := append(obs.httpOptions(),
		httpapi.WithPathPrefix(cfg.PathPrefix),
		httpapi.WithHealthCheck(db.ping),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(books, borrowings, handlerOptions...),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil

	case <-ctx.Done():
		logger.Info("shutdown signal received, draining requests", "timeout", cfg.ShutdownTimeout.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("libraryd stopped gracefully")

	return nil
}
