package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/library-borrowing-go/httpapi"
	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/library/oteladapters"
	"github.com/AntonStoeckl/library-borrowing-go/library/postgresengine"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
	"github.com/AntonStoeckl/library-borrowing-go/shared/shell/config"
)

const instrumentationName = "github.com/AntonStoeckl/library-borrowing-go"

// observability bundles the logger and the optional OpenTelemetry collectors of the process.
type observability struct {
	logger     *slog.Logger
	contextual library.ContextualLogger
	metrics    library.MetricsCollector
	tracing    library.TracingCollector
	providers  *config.ObservabilityProviders
}

func newObservability(ctx context.Context, cfg config.Config) (*observability, error) {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})

	if !cfg.ObservabilityEnabled {
		logger := slog.New(jsonHandler)
		slog.SetDefault(logger)

		return &observability{
			logger:     logger,
			contextual: oteladapters.NewSlogBridgeLoggerWithHandler(jsonHandler),
		}, nil
	}

	providers, err := config.NewObservabilityProviders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setting up observability: %w", err)
	}

	bridge := oteladapters.NewSlogBridgeLoggerWithProvider(instrumentationName, providers.LoggerProvider)
	handler := oteladapters.NewFanoutHandler(jsonHandler, bridge.Handler())
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return &observability{
		logger:     logger,
		contextual: oteladapters.NewSlogBridgeLoggerWithHandler(handler),
		metrics:    oteladapters.NewMetricsCollector(otel.Meter(instrumentationName)),
		tracing:    oteladapters.NewTracingCollector(otel.Tracer(instrumentationName)),
		providers:  providers,
	}, nil
}

func (o *observability) shutdown(timeout time.Duration) {
	if o.providers == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := o.providers.Shutdown(ctx); err != nil {
		o.logger.Warn("flushing telemetry failed", "error", err)
	}
}

func (o *observability) engineOptions() []postgresengine.Option {
	options := []postgresengine.Option{postgresengine.WithContextualLogger(o.contextual)}

	if o.metrics != nil {
		options = append(options, postgresengine.WithMetrics(o.metrics))
	}
	if o.tracing != nil {
		options = append(options, postgresengine.WithTracing(o.tracing))
	}

	return options
}

func (o *observability) bookServiceOptions() []bookservice.Option {
	options := []bookservice.Option{bookservice.WithLogger(o.contextual)}

	if o.metrics != nil {
		options = append(options, bookservice.WithMetrics(o.metrics))
	}
	if o.tracing != nil {
		options = append(options, bookservice.WithTracing(o.tracing))
	}

	return options
}

func (o *observability) borrowingServiceOptions() []borrowing.Option {
	options := []borrowing.Option{borrowing.WithLogger(o.contextual)}

	if o.metrics != nil {
		options = append(options, borrowing.WithMetrics(o.metrics))
	}
	if o.tracing != nil {
		options = append(options, borrowing.WithTracing(o.tracing))
	}

	return options
}

func (o *observability) httpOptions() []httpapi.Option {
	options := []httpapi.Option{httpapi.WithLogger(o.contextual)}

	if o.metrics != nil {
		options = append(options, httpapi.WithMetrics(o.metrics))
	}
	if o.tracing != nil {
		options = append(options, httpapi.WithTracing(o.tracing))
	}

	return options
}

// database is the engine together with the connection handles it was built from.
type database struct {
	engine *postgresengine.Engine
	ping   func(ctx context.Context) error
	close  func()
}

// openDatabase connects with the configured adapter and builds the engine on top of it.
func openDatabase(ctx context.Context, cfg config.Config, obs *observability) (*database, error) {
	options := obs.engineOptions()

	switch cfg.DBAdapter {
	case config.AdapterSQLDB:
		db, err := config.NewPostgresSQLDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &database{engine: engine, ping: db.PingContext, close: func() { _ = db.Close() }}, nil

	case config.AdapterSQLX:
		db, err := config.NewPostgresSQLX(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &database{engine: engine, ping: db.PingContext, close: func() { _ = db.Close() }}, nil

	default:
		return openPGX(ctx, cfg, obs, options)
	}
}

func openPGX(ctx context.Context, cfg config.Config, obs *observability, options []postgresengine.Option) (*database, error) {
	pool, err := config.NewPGXPool(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.ReplicaDSN == "" {
		engine, engineErr := postgresengine.NewEngineFromPGXPool(pool, options...)
		if engineErr != nil {
			pool.Close()
			return nil, engineErr
		}

		return &database{engine: engine, ping: pool.Ping, close: pool.Close}, nil
	}

	replica, err := config.NewPGXPool(ctx, cfg.ReplicaDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("replica: %w", err)
	}

	engine, err := postgresengine.NewEngineFromPGXPoolAndReplica(pool, replica, options...)
	if err != nil {
		pool.Close()
		replica.Close()
		return nil, err
	}

	obs.logger.Info("listings are served from the read replica")

	return &database{
		engine: engine,
		ping:   pool.Ping,
		close: func() {
			replica.Close()
			pool.Close()
		},
	}, nil
}
