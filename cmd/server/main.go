// Package main is the entry point for the menu subscription server.
//
// main only reads configuration, opens the store selected by STORE_DRIVER
// and starts the server. Everything else lives under internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/menu-subscriptions/internal/config"
	"github.com/sakif/menu-subscriptions/internal/repository"
	mongoRepo "github.com/sakif/menu-subscriptions/internal/repository/mongo"
	postgresRepo "github.com/sakif/menu-subscriptions/internal/repository/postgres"
	sqliteRepo "github.com/sakif/menu-subscriptions/internal/repository/sqlite"
	"github.com/sakif/menu-subscriptions/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the log settings are part of what failed to load.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	repo, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open subscription store",
			slog.String("driver", cfg.StoreDriver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger, repo)
	if err != nil {
		repo.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openStore connects to the backend named by cfg.StoreDriver and makes sure
// its schema exists.
func openStore(cfg *config.Config, logger *slog.Logger) (repository.SubscriberRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgresRepo.New(cfg.DatabaseURL, logger)

	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)

	default:
		if cfg.DBPath != ":memory:" {
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		logger.Info("opening sqlite store", slog.String("path", cfg.DBPath))
		return sqliteRepo.New(cfg.DBPath)
	}
}
