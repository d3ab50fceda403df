package main

import (
	"context"
	"flag"
	"log"
	"time"

	"cryptotracker/internal/config"
	"cryptotracker/internal/database"
	"cryptotracker/internal/logger"

	"go.uber.org/zap"
)

// migrate checks the database connection and creates the schema.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dsn := flag.String("db", cfg.Postgres.DSN, "Database connection string")
	flag.Parse()

	logger.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.Open(*dsn)
	if err != nil {
		logger.Log.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}
	logger.Log.Info("Successfully connected to the database and applied the schema")
}
