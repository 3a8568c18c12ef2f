package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pubsubclient "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/fetchpipe/internal/api"
	"github.com/JakeFAU/fetchpipe/internal/clock/system"
	"github.com/JakeFAU/fetchpipe/internal/config"
	"github.com/JakeFAU/fetchpipe/internal/fetch"
	collyfetcher "github.com/JakeFAU/fetchpipe/internal/fetcher/colly"
	"github.com/JakeFAU/fetchpipe/internal/id/uuid"
	"github.com/JakeFAU/fetchpipe/internal/logging"
	"github.com/JakeFAU/fetchpipe/internal/pipeline"
	"github.com/JakeFAU/fetchpipe/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/fetchpipe/internal/publisher/pubsub"
	"github.com/JakeFAU/fetchpipe/internal/storage"
	"github.com/JakeFAU/fetchpipe/internal/storage/gcs"
	"github.com/JakeFAU/fetchpipe/internal/storage/local"
	"github.com/JakeFAU/fetchpipe/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("run failed", zap.Error(err))
	}
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// run wires every collaborator from cfg and executes one pipeline run.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	router := storage.NewRouter(local.New())
	if usesGCS(cfg) {
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		store, err := gcs.New(client)
		if err != nil {
			return err
		}
		router.Register("gs", store)
	}

	deps := pipeline.Deps{
		Storage: router,
		IDs:     uuid.New(),
		Clock:   system.New(),
	}

	if cfg.Failures.DSN != "" {
		failures, err := postgres.NewFailureStore(ctx, postgres.FailureStoreConfig{
			DSN:   cfg.Failures.DSN,
			Table: cfg.Failures.Table,
		})
		if err != nil {
			return fmt.Errorf("init failure store: %w", err)
		}
		cleanups = append(cleanups, failures.Close)
		deps.Failures = failures
	}

	if cfg.Notify.Topic != "" {
		client, err := pubsubclient.NewClient(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		publisher := pubsubpublisher.New(client)
		cleanups = append(cleanups, publisher.Close)
		deps.Publisher = publisher
	}

	client := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTP.Timeout,
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	deps.Client = client

	var limiter fetch.Limiter
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.HTTP.RateLimitRPS, Burst: cfg.HTTP.RateLimitBurst})
	}
	deps.Fetcher = fetch.NewFetcher(client, deps.Clock, limiter, fetch.FetcherConfig{
		Timeout:      cfg.HTTP.Timeout,
		Policy:       fetch.NewRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, logger.Named("fetch"))

	p, err := pipeline.New(pipeline.Config{
		WorkerCount:     cfg.Pipeline.WorkerCount,
		URLQueueSize:    cfg.Pipeline.URLQueueSize,
		ResultQueueSize: cfg.Pipeline.ResultQueueSize,
		Mode:            cfg.Pipeline.OutputMode,
		EmitFailures:    cfg.Pipeline.EmitFailures,
		NotifyTopic:     cfg.Notify.Topic,
	}, deps, logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	serverErr := make(chan error, 1)
	if cfg.Metrics.ListenAddr != "" {
		serverCtx, stopServer := context.WithCancel(ctx)
		server := api.NewServer(p, logger.Named("api"))
		go func() {
			logger.Info("metrics server started", zap.String("addr", cfg.Metrics.ListenAddr))
			serverErr <- server.ListenAndServe(serverCtx, cfg.Metrics.ListenAddr)
		}()
		defer func() {
			stopServer()
			if srvErr := <-serverErr; srvErr != nil {
				err = errors.Join(err, srvErr)
			}
		}()
	}

	if _, err := p.Run(ctx, cfg.Source.Path, cfg.Sink.Path); err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	return nil
}

func usesGCS(cfg config.Config) bool {
	return storage.Scheme(cfg.Source.Path) == "gs" || storage.Scheme(cfg.Sink.Path) == "gs"
}
