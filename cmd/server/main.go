package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"

	"github.com/muandane/estatic/internal/cache"
	"github.com/muandane/estatic/internal/config"
	"github.com/muandane/estatic/internal/handlers"
	"github.com/muandane/estatic/internal/router"
	"github.com/muandane/estatic/internal/storage"
	"github.com/muandane/estatic/internal/transmit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.LogLevel}))
	slog.SetDefault(logger)

	policies := config.DefaultPolicyTable()
	if cfg.Cache.PolicyFile != "" {
		if policies, err = config.LoadPolicyTable(cfg.Cache.PolicyFile); err != nil {
			logger.Error("failed to load policy file", "file", cfg.Cache.PolicyFile, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("policy table loaded", "rules", policies.Len())

	src, checks, err := newSource(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *cache.Watcher
	store := cache.NewStore(src, policies, cache.Options{
		MaxFileSize:  cfg.Cache.MaxFileSize,
		Revalidate:   cfg.Cache.Revalidate,
		SingleFlight: cfg.Cache.SingleFlight,
		OpenRetries:  cfg.Storage.OpenRetries,
		Logger:       logger,
		OnPopulate: func(name string) {
			if watcher != nil {
				watcher.Track(name)
			}
		},
	})

	if local, ok := src.(*storage.LocalSource); ok && cfg.Cache.Watch {
		if watcher, err = cache.NewWatcher(local.Root(), store, logger); err != nil {
			logger.Warn("file watching disabled", "error", err)
			watcher = nil
		} else {
			go watcher.Run(ctx)
		}
	}
	store.Start(ctx, cfg.Cache.CleanupInterval)

	tx := transmit.New(src, transmit.Options{
		OpenRetries: cfg.Storage.OpenRetries,
		Logger:      logger,
	})
	static, err := handlers.NewStaticHandler(store, tx, handlers.StaticOptions{
		ForbiddenExtensions: cfg.Server.ForbiddenExtensions,
		Logger:              logger,
	})
	if err != nil {
		logger.Error("failed to create static handler", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := router.NewRouter(logger).Setup(router.Options{
		Static:       static,
		Stats:        store,
		HealthChecks: checks,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		AccessLog:    cfg.Server.AccessLog,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"addr", cfg.Server.Addr,
			"backend", cfg.Storage.Backend,
			"max_file_size", cfg.Cache.MaxFileSize,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("shutting down server")
				return srv.Shutdown(ctx)
			},
			"entity-store": func(ctx context.Context) error {
				cancel()
				if watcher != nil {
					return watcher.Close()
				}
				return nil
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

func newSource(cfg config.StorageConfig) (storage.Source, map[string]handlers.HealthCheck, error) {
	switch cfg.Backend {
	case config.BackendS3:
		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		checks := map[string]handlers.HealthCheck{
			"storage": func(ctx context.Context) error {
				ok, err := client.BucketExists(ctx, cfg.Bucket)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("bucket %s does not exist", cfg.Bucket)
				}
				return nil
			},
		}
		return storage.NewS3Source(client, cfg.Bucket, cfg.Prefix), checks, nil
	default:
		if _, err := os.Stat(cfg.Root); err != nil {
			return nil, nil, fmt.Errorf("static root: %w", err)
		}
		checks := map[string]handlers.HealthCheck{
			"storage": func(context.Context) error {
				_, err := os.Stat(cfg.Root)
				return err
			},
		}
		return storage.NewLocalSource(cfg.Root), checks, nil
	}
}
