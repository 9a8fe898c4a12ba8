package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/graindesk/wallet_topup/internal/config"
	"github.com/graindesk/wallet_topup/internal/infra"
	"github.com/graindesk/wallet_topup/internal/logging"
	"github.com/graindesk/wallet_topup/internal/notification"
	"github.com/graindesk/wallet_topup/internal/server"
	"github.com/graindesk/wallet_topup/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.Apply(ctx, db); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory backends")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", slog.Any("error", err))
			}
		}()
	}

	notifier, closeSinks, err := buildNotifier(ctx, cfg, cache, logger)
	if err != nil {
		logger.Error("configure event sinks", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeSinks()

	srv, err := server.New(cfg, db, cache, notifier, logger)
	if err != nil {
		logger.Error("build server", slog.Any("error", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// buildNotifier assembles the event sinks named in EVENT_SINKS.
func buildNotifier(ctx context.Context, cfg config.Config, cache *redis.Client, logger *slog.Logger) (notification.Notifier, func(), error) {
	var (
		sinks   notification.Multi
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.SinkEnabled("log") {
		sinks = append(sinks, notification.NewLoggerNotifier(logging.Component(logger, "events")))
	}
	if cfg.SinkEnabled("redis") {
		if cache == nil {
			return nil, closeAll, fmt.Errorf("redis event sink requires REDIS_URL")
		}
		sinks = append(sinks, notification.NewRedisNotifier(cache, ""))
	}
	if cfg.SinkEnabled("amqp") {
		mq, err := infra.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AppName)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() {
			if err := mq.Close(); err != nil {
				logger.Warn("close amqp", slog.Any("error", err))
			}
		})
		sinks = append(sinks, notification.NewAMQPNotifier(mq.Channel, cfg.AMQPExchange))
	}
	if cfg.SinkEnabled("mongo") {
		client, err := infra.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("close mongo", slog.Any("error", err))
			}
		})
		sinks = append(sinks, notification.NewMongoArchive(client, cfg.MongoDatabase))
	}

	return sinks, closeAll, nil
}
