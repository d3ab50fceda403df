package feed

import (
	"context"
	"sync/atomic"
	"time"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

// Fetcher is the part of Client the poller needs.
type Fetcher interface {
	FetchMarketSnapshot(ctx context.Context) ([]models.CoinSnapshot, error)
	FetchGlobalStats(ctx context.Context) (models.GlobalStats, error)
}

// Sink receives every result the Board accepted, e.g. to forward it to Kafka.
type Sink interface {
	CoinsApplied(ctx context.Context, seq uint64, coins []models.CoinSnapshot, fetchedAt time.Time)
	GlobalApplied(ctx context.Context, seq uint64, stats models.GlobalStats, fetchedAt time.Time)
}

// Poller refreshes a Board on fixed intervals. Every fetch takes its sequence
// number before the request goes out so the Board can drop late answers.
type Poller struct {
	fetcher        Fetcher
	board          *market.Board
	sink           Sink
	marketInterval time.Duration
	globalInterval time.Duration
	seq            atomic.Uint64
}

func NewPoller(fetcher Fetcher, board *market.Board, marketInterval, globalInterval time.Duration) *Poller {
	p := &Poller{
		fetcher:        fetcher,
		board:          board,
		marketInterval: marketInterval,
		globalInterval: globalInterval,
	}
	// Seeding from the clock keeps sequences increasing across restarts, which
	// downstream consumers of published results rely on.
	p.seq.Store(uint64(time.Now().UnixNano()))
	return p
}

// WithSink attaches a sink; call before Run.
func (p *Poller) WithSink(s Sink) *Poller {
	p.sink = s
	return p
}

// Run fetches both sources immediately and then on their intervals until ctx
// is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	logger.Log.Info("Starting market poller",
		zap.Duration("market_interval", p.marketInterval),
		zap.Duration("global_interval", p.globalInterval),
	)

	p.Refresh(ctx)

	marketTicker := time.NewTicker(p.marketInterval)
	defer marketTicker.Stop()
	globalTicker := time.NewTicker(p.globalInterval)
	defer globalTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Market poller stopped")
			return nil
		case <-marketTicker.C:
			go p.RefreshCoins(ctx)
		case <-globalTicker.C:
			go p.RefreshGlobal(ctx)
		}
	}
}

// Refresh fetches both sources concurrently and waits for them.
func (p *Poller) Refresh(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() { p.RefreshCoins(ctx); done <- struct{}{} }()
	go func() { p.RefreshGlobal(ctx); done <- struct{}{} }()
	<-done
	<-done
}

// RefreshCoins performs one market snapshot fetch and applies the outcome.
func (p *Poller) RefreshCoins(ctx context.Context) error {
	seq := p.seq.Add(1)
	coins, err := p.fetcher.FetchMarketSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.board.Fail(market.SourceCoins, seq, err)
		logger.Log.Error("Market snapshot fetch failed", zap.Uint64("seq", seq), zap.Error(err))
		return err
	}

	now := time.Now()
	if !p.board.ApplyCoins(seq, coins, now) {
		logger.Log.Debug("Dropped stale market snapshot", zap.Uint64("seq", seq))
		return nil
	}
	logger.Log.Info("Market snapshot updated", zap.Uint64("seq", seq), zap.Int("coins", len(coins)))
	if p.sink != nil {
		p.sink.CoinsApplied(ctx, seq, coins, now)
	}
	return nil
}

// RefreshGlobal performs one global stats fetch and applies the outcome.
func (p *Poller) RefreshGlobal(ctx context.Context) error {
	seq := p.seq.Add(1)
	stats, err := p.fetcher.FetchGlobalStats(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.board.Fail(market.SourceGlobal, seq, err)
		logger.Log.Error("Global stats fetch failed", zap.Uint64("seq", seq), zap.Error(err))
		return err
	}

	now := time.Now()
	if !p.board.ApplyGlobal(seq, stats, now) {
		logger.Log.Debug("Dropped stale global stats", zap.Uint64("seq", seq))
		return nil
	}
	if p.sink != nil {
		p.sink.GlobalApplied(ctx, seq, stats, now)
	}
	return nil
}
