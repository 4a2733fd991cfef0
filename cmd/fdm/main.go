// Package main is the entry point for the notification data service.
//
// It loads configuration, opens the event store, starts the SQS poller that
// folds notification events into message aggregates and serves the read API.
// SIGINT and SIGTERM stop the poller after its in-flight batch and drain the
// HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"fdm/internal/api/handlers"
	"fdm/internal/config"
	"fdm/internal/core"
	"fdm/internal/db"
	"fdm/internal/db/sqlite"
	"fdm/internal/events"
	"fdm/internal/metrics"
	"fdm/internal/queue"
	"fdm/internal/simulate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewFileProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("notification data service starting",
		"environment", cfg.Environment,
		"build", cfg.Build,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.close()

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPMetrics(cfg.Observability.MetricNamespace, nil)
	if err != nil {
		return fmt.Errorf("registering http metrics: %w", err)
	}
	srv.HTTPMetrics = httpMetrics
	srv.HealthProbes = append(srv.HealthProbes, core.StoreProbe{Store: store.pinger})

	messages := handlers.NewMessageHandler(store.reader, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, messages.RegisterRoutes)

	var (
		consumer  *queue.Consumer
		simulator handlers.Simulator
	)
	if cfg.Consumer.Enabled || cfg.Feature.SimulationEnabled {
		awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return err
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		srv.HealthProbes = append(srv.HealthProbes, core.QueueProbe{Client: sqsClient, QueueURL: cfg.AWS.EventsQueueURL})

		if cfg.Consumer.Enabled {
			writer := db.NewBreakerStore(store.writer, db.BreakerSettings{
				Name:        "event-store",
				MaxFailures: cfg.Breaker.MaxFailures,
				OpenTimeout: cfg.Breaker.OpenTimeout,
				Interval:    cfg.Breaker.Interval,
			}, logger)
			srv.HealthProbes = append(srv.HealthProbes, writer)

			var pipelineMetrics metrics.PipelineMetrics = metrics.Noop{}
			if cfg.Observability.MetricsEnabled {
				pipelineMetrics = metrics.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg),
					cfg.Observability.MetricNamespace, cfg.AWS.EventsQueueURL, logger)
			}

			consumer = queue.NewConsumer(sqsClient, events.NewProcessor(writer, logger), pipelineMetrics,
				queue.ConsumerSettings{
					QueueURL:        cfg.AWS.EventsQueueURL,
					MaxMessages:     cfg.Consumer.MaxMessages,
					WaitTime:        cfg.Consumer.WaitTime,
					PollingInterval: cfg.Consumer.PollingInterval,
				}, logger)
		}

		if cfg.Feature.SimulationEnabled {
			simulator = simulate.NewSimulator(queue.NewPublisher(sqsClient, cfg.AWS.EventsQueueURL, logger), logger)
		}
	}
	simHandler := handlers.NewSimulationHandler(simulator, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, simHandler.RegisterRoutes)

	srv.MountRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if consumer != nil {
		consumer.Start(gctx)
		logger.Info("event consumer started", "queue_url", cfg.AWS.EventsQueueURL)
		g.Go(func() error {
			<-gctx.Done()
			consumer.Stop()
			logger.Info("event consumer stopped")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}
	logger.Info("notification data service stopped")
	return nil
}

// storeHandles groups the views of the configured event store backend.
type storeHandles struct {
	writer db.MessageWriter
	reader handlers.MessageReader
	pinger core.Pinger
	close  func()
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*storeHandles, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("sqlite store opened", "path", cfg.SQLitePath)
		return &storeHandles{
			writer: s,
			reader: s,
			pinger: s,
			close: func() {
				if err := s.Close(); err != nil {
					logger.Error("failed to close sqlite store", "error", err)
				}
			},
		}, nil

	default:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		logger.Info("postgres store connected", "max_conns", cfg.MaxConns)
		return &storeHandles{
			writer: db.NewEventStore(pool),
			reader: db.NewMessageRepository(pool),
			pinger: pool,
			close:  pool.Close,
		}, nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
