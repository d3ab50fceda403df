// Package events carries market snapshots from ingestion to processing
// over Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"cryptotracker/internal/market"
	"cryptotracker/internal/models"
)

type Kind string

const (
	KindCoins  Kind = "coins"
	KindGlobal Kind = "global"
)

// MarketEvent is one applied fetch result. Seq orders events of the same
// kind; consumers drop anything older than what they already hold.
type MarketEvent struct {
	Kind      Kind                  `json:"kind"`
	Seq       uint64                `json:"seq"`
	FetchedAt time.Time             `json:"fetched_at"`
	Coins     []models.CoinSnapshot `json:"coins,omitempty"`
	Global    *models.GlobalStats   `json:"global,omitempty"`
}

func CoinsEvent(seq uint64, coins []models.CoinSnapshot, at time.Time) MarketEvent {
	return MarketEvent{Kind: KindCoins, Seq: seq, FetchedAt: at, Coins: coins}
}

func GlobalEvent(seq uint64, stats models.GlobalStats, at time.Time) MarketEvent {
	return MarketEvent{Kind: KindGlobal, Seq: seq, FetchedAt: at, Global: &stats}
}

func Decode(data []byte) (MarketEvent, error) {
	var ev MarketEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return MarketEvent{}, fmt.Errorf("decode market event: %w", err)
	}
	switch ev.Kind {
	case KindCoins:
	case KindGlobal:
		if ev.Global == nil {
			return MarketEvent{}, fmt.Errorf("global event %d has no stats", ev.Seq)
		}
	default:
		return MarketEvent{}, fmt.Errorf("unknown market event kind %q", ev.Kind)
	}
	return ev, nil
}

// ApplyTo hands the event to the board. It reports false when the board
// already holds newer data.
func (e MarketEvent) ApplyTo(b *market.Board) bool {
	switch e.Kind {
	case KindCoins:
		return b.ApplyCoins(e.Seq, e.Coins, e.FetchedAt)
	case KindGlobal:
		if e.Global == nil {
			return false
		}
		return b.ApplyGlobal(e.Seq, *e.Global, e.FetchedAt)
	}
	return false
}
