package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cryptotracker/internal/events"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MarketChannel carries every stored market event to API instances.
const MarketChannel = "market_updates"

func marketKey(kind events.Kind) string    { return "market:" + string(kind) }
func marketSeqKey(kind events.Kind) string { return "market:" + string(kind) + ":seq" }

// MarketCache holds the latest market event of each kind so API instances
// can start warm, and fans new ones out on MarketChannel.
type MarketCache struct {
	client *Client
}

func NewMarketCache(client *Client) *MarketCache {
	return &MarketCache{client: client}
}

// Store saves ev unless a newer event of the same kind is already stored,
// then publishes it. It reports whether ev was stored.
func (m *MarketCache) Store(ctx context.Context, ev events.MarketEvent) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("encode market event: %w", err)
	}

	seqKey := marketSeqKey(ev.Kind)
	stored := false
	err = m.client.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, seqKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && ev.Seq <= cur {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, marketKey(ev.Kind), payload, 0)
			pipe.Set(ctx, seqKey, ev.Seq, 0)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, seqKey)
	if err != nil {
		return false, fmt.Errorf("store market event: %w", err)
	}
	if !stored {
		return false, nil
	}

	if err := m.client.Publish(ctx, MarketChannel, payload); err != nil {
		return true, fmt.Errorf("publish market event: %w", err)
	}
	return true, nil
}

// Load returns the stored event of kind, if any.
func (m *MarketCache) Load(ctx context.Context, kind events.Kind) (events.MarketEvent, bool, error) {
	raw, err := m.client.rdb.Get(ctx, marketKey(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return events.MarketEvent{}, false, nil
	}
	if err != nil {
		return events.MarketEvent{}, false, err
	}
	ev, err := events.Decode(raw)
	if err != nil {
		return events.MarketEvent{}, false, err
	}
	return ev, true, nil
}

// Follow warms board from the stored events and then applies every
// published one until ctx is done.
func (m *MarketCache) Follow(ctx context.Context, board *market.Board) error {
	// Subscribe first so nothing published during the warm-up is lost.
	sub, err := m.client.Subscribe(ctx, MarketChannel)
	if err != nil {
		return err
	}
	defer sub.Close()

	for _, kind := range []events.Kind{events.KindCoins, events.KindGlobal} {
		ev, ok, err := m.Load(ctx, kind)
		if err != nil {
			logger.Log.Warn("Failed to load cached market data",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		if ok {
			ev.ApplyTo(board)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return errors.New("market update subscription closed")
			}
			ev, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				logger.Log.Error("Error unmarshaling market update", zap.Error(err))
				continue
			}
			if !ev.ApplyTo(board) {
				logger.Log.Debug("Dropped stale market update",
					zap.String("kind", string(ev.Kind)),
					zap.Uint64("seq", ev.Seq),
				)
			}
		}
	}
}
