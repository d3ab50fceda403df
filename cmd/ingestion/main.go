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

	"cryptotracker/internal/config"
	"cryptotracker/internal/events"
	"cryptotracker/internal/feed"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ingestion polls CoinGecko and publishes every fresh result to Kafka.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	metricsAddr := flag.String("metrics-addr", ":2112", "Address for the Prometheus metrics endpoint")
	flag.Parse()

	logger.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		logger.Log.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer producer.Close(5 * time.Second)

	client := feed.NewClient(feed.ClientConfig{
		BaseURL:           cfg.Feed.BaseURL,
		APIKey:            cfg.Feed.APIKey,
		PerPage:           cfg.Feed.PerPage,
		Timeout:           cfg.Feed.RequestTimeout,
		RequestsPerMinute: cfg.Feed.RequestsPerMinute,
	})
	poller := feed.NewPoller(client, market.NewBoard(), cfg.Feed.MarketInterval, cfg.Feed.GlobalInterval).
		WithSink(producer)

	metrics := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	defer metrics.Close()

	logger.Log.Info("Ingestion started",
		zap.String("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	if err := poller.Run(ctx); err != nil {
		logger.Log.Error("Poller stopped", zap.Error(err))
	}
}
