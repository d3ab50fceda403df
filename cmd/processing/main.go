package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/config"
	"cryptotracker/internal/events"
	"cryptotracker/internal/logger"

	"go.uber.org/zap"
)

// processing consumes market events from Kafka and keeps the shared Redis
// market cache current for every API instance.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Instance: cfg.Instance,
	})
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	marketCache := cache.NewMarketCache(redisClient)

	consumer, err := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
	if err != nil {
		logger.Log.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	logger.Log.Info("Listening for market events", zap.String("topic", cfg.Kafka.Topic))

	err = consumer.Run(ctx, func(ctx context.Context, ev events.MarketEvent) error {
		stored, err := marketCache.Store(ctx, ev)
		if err != nil {
			return err
		}
		if !stored {
			logger.Log.Info("Skipped stale market event",
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("seq", ev.Seq),
			)
			return nil
		}
		logger.Log.Info("Market cache updated",
			zap.String("kind", string(ev.Kind)),
			zap.Uint64("seq", ev.Seq),
			zap.Int("coins", len(ev.Coins)),
		)
		return nil
	})
	if err != nil {
		logger.Log.Error("Consumer stopped", zap.Error(err))
	}
}
