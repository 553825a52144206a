package main

import (
	"os"

	"github.com/oggyb/devmatch/internal/config"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	if cfg.DB.Driver == "sqlite" && cfg.DB.DSN == "file:devmatch?mode=memory&cache=shared" {
		log.Warn("seeding an in-memory database; data is gone when this process exits")
	}

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if err := db.SeedTestData(database); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed")
}
