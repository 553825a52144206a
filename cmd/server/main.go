package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oggyb/devmatch/internal/app"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/config"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/events"
	"github.com/oggyb/devmatch/internal/logger"
	"github.com/oggyb/devmatch/internal/server"
	"github.com/oggyb/devmatch/internal/service/devmatch"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	if cfg.App.ENV == "development" || cfg.DB.Driver == "sqlite" {
		// the in-memory catalog starts empty
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	publisher := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)

	appCtx := app.New(cfg, database, redisCache, publisher, log)
	defer appCtx.Close()

	registrars := []server.Registrar{
		devmatch.NewRegistrar(appCtx),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.StartGRPCServer(ctx, cfg, log, registrars...); err != nil {
		log.Error("gRPC server stopped", "err", err)
	}
}
