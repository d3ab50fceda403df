package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cryptotracker/internal/market"
	"cryptotracker/internal/models"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	calls   int
	coinsFn func(call int) ([]models.CoinSnapshot, error)
	global  models.GlobalStats
	gErr    error
}

func (s *scriptedFetcher) FetchMarketSnapshot(ctx context.Context) ([]models.CoinSnapshot, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.coinsFn(call)
}

func (s *scriptedFetcher) FetchGlobalStats(ctx context.Context) (models.GlobalStats, error) {
	return s.global, s.gErr
}

type recordingSink struct {
	mu     sync.Mutex
	coins  []uint64
	global []uint64
}

func (r *recordingSink) CoinsApplied(ctx context.Context, seq uint64, coins []models.CoinSnapshot, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coins = append(r.coins, seq)
}

func (r *recordingSink) GlobalApplied(ctx context.Context, seq uint64, stats models.GlobalStats, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, seq)
}

func TestPollerRefreshAppliesBothSources(t *testing.T) {
	fetcher := &scriptedFetcher{
		coinsFn: func(int) ([]models.CoinSnapshot, error) {
			return []models.CoinSnapshot{{ID: "bitcoin"}}, nil
		},
		global: models.GlobalStats{Markets: 42},
	}
	sink := &recordingSink{}
	board := market.NewBoard()
	p := NewPoller(fetcher, board, time.Minute, 5*time.Minute).WithSink(sink)

	p.Refresh(context.Background())

	coins, st := board.Coins()
	if len(coins) != 1 || st.Err != nil {
		t.Errorf("Expected one coin and no error, got %v %v", coins, st.Err)
	}
	g, _ := board.Global()
	if g == nil || g.Markets != 42 {
		t.Errorf("Expected global stats, got %v", g)
	}
	if len(sink.coins) != 1 || len(sink.global) != 1 {
		t.Errorf("Expected sink to see one of each, got %v %v", sink.coins, sink.global)
	}
}

func TestPollerStaleResponseDoesNotOverwrite(t *testing.T) {
	release := make(chan struct{})
	fetcher := &scriptedFetcher{
		coinsFn: func(call int) ([]models.CoinSnapshot, error) {
			if call == 1 {
				<-release
				return []models.CoinSnapshot{{ID: "stale"}}, nil
			}
			return []models.CoinSnapshot{{ID: "fresh"}}, nil
		},
	}
	board := market.NewBoard()
	p := NewPoller(fetcher, board, time.Minute, time.Minute)

	slow := make(chan struct{})
	go func() {
		p.RefreshCoins(context.Background())
		close(slow)
	}()

	// wait until the slow request has taken its sequence number
	deadline := time.Now().Add(time.Second)
	for {
		fetcher.mu.Lock()
		calls := fetcher.calls
		fetcher.mu.Unlock()
		if calls == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for first fetch")
		}
		time.Sleep(time.Millisecond)
	}

	if err := p.RefreshCoins(context.Background()); err != nil {
		t.Fatalf("Second refresh failed: %v", err)
	}
	close(release)
	<-slow

	coins, _ := board.Coins()
	if len(coins) != 1 || coins[0].ID != "fresh" {
		t.Errorf("Expected fresh data to win, got %v", coins)
	}
}

func TestPollerFailureSurfacesErrorState(t *testing.T) {
	boom := errors.New("unreachable")
	fetcher := &scriptedFetcher{
		coinsFn: func(call int) ([]models.CoinSnapshot, error) {
			if call == 1 {
				return []models.CoinSnapshot{{ID: "bitcoin"}}, nil
			}
			return nil, boom
		},
	}
	board := market.NewBoard()
	p := NewPoller(fetcher, board, time.Minute, time.Minute)

	p.RefreshCoins(context.Background())
	if err := p.RefreshCoins(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected fetch error, got %v", err)
	}

	coins, st := board.Coins()
	if len(coins) != 1 {
		t.Errorf("Expected previous coins to remain, got %v", coins)
	}
	if !errors.Is(st.Err, boom) {
		t.Errorf("Expected error state, got %v", st.Err)
	}

	// the next scheduled attempt clears it
	fetcher.coinsFn = func(int) ([]models.CoinSnapshot, error) { return nil, nil }
	p.RefreshCoins(context.Background())
	if _, st := board.Coins(); st.Err != nil {
		t.Errorf("Expected error cleared after success, got %v", st.Err)
	}
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	fetcher := &scriptedFetcher{
		coinsFn: func(int) ([]models.CoinSnapshot, error) { return nil, nil },
	}
	p := NewPoller(fetcher, market.NewBoard(), 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
