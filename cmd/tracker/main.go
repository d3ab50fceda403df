package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptotracker/internal/auth"
	"cryptotracker/internal/cache"
	"cryptotracker/internal/config"
	"cryptotracker/internal/database"
	"cryptotracker/internal/feed"
	"cryptotracker/internal/handlers"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"
	"cryptotracker/internal/memstore"
	"cryptotracker/internal/tracing"
	"cryptotracker/internal/watchlist"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	port := flag.String("port", cfg.Server.Port, "Port for the API server")
	instance := flag.String("instance", cfg.Instance, "Instance ID for this server")
	feedMode := flag.String("feed", "poll", "Market data source: poll (CoinGecko directly) or cache (Redis, fed by ingestion and processing)")
	storeMode := flag.String("store", "postgres", "Accounts and sessions backend: postgres or memory")
	flag.Parse()

	logger.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.InitTracer(ctx, "tracker", cfg.Tracing.Endpoint)
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}()

	client := feed.NewClient(feed.ClientConfig{
		BaseURL:           cfg.Feed.BaseURL,
		APIKey:            cfg.Feed.APIKey,
		PerPage:           cfg.Feed.PerPage,
		Timeout:           cfg.Feed.RequestTimeout,
		RequestsPerMinute: cfg.Feed.RequestsPerMinute,
	})
	board := market.NewBoard()

	srv := &handlers.Server{
		Board:       board,
		Trending:    client,
		Instance:    *instance,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	authOpts := auth.Options{
		SessionTTL:        cfg.Auth.SessionTTL,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}

	var redisClient *cache.Client
	if *storeMode != "memory" || *feedMode == "cache" {
		redisClient, err = cache.Connect(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Instance: *instance,
		})
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		srv.Cache = redisClient
	}

	switch *storeMode {
	case "memory":
		logger.Log.Warn("Using in-memory store; accounts and sessions are lost on restart")
		store := memstore.NewStore()
		srv.Auth = auth.NewService(store, store, memstore.NewSessions(),
			memstore.NewThrottle(cfg.Auth.SignInPerMinute, time.Minute), authOpts)
		srv.Watchlist = watchlist.NewService(store, memstore.NewNotifier())
	case "postgres":
		db, err := database.Open(cfg.Postgres.DSN)
		if err != nil {
			logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		srv.Auth = auth.NewService(db, db, cache.NewSessionStore(redisClient),
			cache.NewSignInThrottle(redisClient, cfg.Auth.SignInPerMinute), authOpts)
		srv.Watchlist = watchlist.NewService(db, cache.NewWatchlistNotifier(redisClient))
	default:
		logger.Log.Fatal("Unknown store mode", zap.String("store", *storeMode))
	}

	switch *feedMode {
	case "poll":
		poller := feed.NewPoller(client, board, cfg.Feed.MarketInterval, cfg.Feed.GlobalInterval)
		srv.Refresher = poller
		go func() {
			if err := poller.Run(ctx); err != nil {
				logger.Log.Error("Market poller stopped", zap.Error(err))
			}
		}()
	case "cache":
		marketCache := cache.NewMarketCache(redisClient)
		go func() {
			if err := marketCache.Follow(ctx, board); err != nil {
				logger.Log.Error("Stopped following market updates", zap.Error(err))
				stop()
			}
		}()
	default:
		logger.Log.Fatal("Unknown feed mode", zap.String("feed", *feedMode))
	}

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Log.Info("Tracker API starting",
		zap.String("port", *port),
		zap.String("instance", *instance),
		zap.String("feed", *feedMode),
		zap.String("store", *storeMode),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal("Server failed", zap.Error(err))
	}
	logger.Log.Info("Tracker API stopped")
}
