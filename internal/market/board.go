package market

import (
	"sync"
	"time"

	"cryptotracker/internal/models"
)

// Source identifies one independently refreshed data set on the Board.
type Source string

const (
	SourceCoins  Source = "coins"
	SourceGlobal Source = "global"
)

// State is what readers see for a source: the last good data plus the error
// of the latest attempt, if that attempt failed.
type State struct {
	Seq       uint64    `json:"seq"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       error     `json:"-"`
}

// Update is delivered to Board subscribers after every applied change.
type Update struct {
	Source Source
	Seq    uint64
}

// Board holds the current market data. Results are applied latest-wins: each
// fetch carries the sequence number it was started with, and anything older
// than what a source has already seen is dropped.
type Board struct {
	mu     sync.RWMutex
	coins  []models.CoinSnapshot
	global *models.GlobalStats
	states map[Source]*State
	seen   map[Source]uint64
	subs   map[chan Update]struct{}
	subsMu sync.Mutex
}

func NewBoard() *Board {
	return &Board{
		states: map[Source]*State{SourceCoins: {}, SourceGlobal: {}},
		seen:   make(map[Source]uint64),
		subs:   make(map[chan Update]struct{}),
	}
}

// accept must be called with mu held.
func (b *Board) accept(src Source, seq uint64) bool {
	if seq <= b.seen[src] {
		return false
	}
	b.seen[src] = seq
	return true
}

// ApplyCoins replaces the coin list wholesale. It returns false when seq is
// stale.
func (b *Board) ApplyCoins(seq uint64, coins []models.CoinSnapshot, fetchedAt time.Time) bool {
	b.mu.Lock()
	if !b.accept(SourceCoins, seq) {
		b.mu.Unlock()
		return false
	}
	b.coins = coins
	b.states[SourceCoins] = &State{Seq: seq, FetchedAt: fetchedAt}
	b.mu.Unlock()

	b.notify(Update{Source: SourceCoins, Seq: seq})
	return true
}

// ApplyGlobal replaces the aggregate stats. It returns false when seq is stale.
func (b *Board) ApplyGlobal(seq uint64, stats models.GlobalStats, fetchedAt time.Time) bool {
	b.mu.Lock()
	if !b.accept(SourceGlobal, seq) {
		b.mu.Unlock()
		return false
	}
	b.global = &stats
	b.states[SourceGlobal] = &State{Seq: seq, FetchedAt: fetchedAt}
	b.mu.Unlock()

	b.notify(Update{Source: SourceGlobal, Seq: seq})
	return true
}

// Fail records a failed attempt. The previous data stays readable.
func (b *Board) Fail(src Source, seq uint64, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.accept(src, seq) {
		return false
	}
	prev := b.states[src]
	b.states[src] = &State{Seq: seq, FetchedAt: prev.FetchedAt, Err: err}
	return true
}

// Coins returns the current list and the state of the last attempt. The
// returned slice must not be modified.
func (b *Board) Coins() ([]models.CoinSnapshot, State) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.coins, *b.states[SourceCoins]
}

// Coin looks a coin up by id in the current list.
func (b *Board) Coin(id string) (models.CoinSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.coins {
		if c.ID == id {
			return c, true
		}
	}
	return models.CoinSnapshot{}, false
}

// Global returns the aggregate stats, nil until the first success.
func (b *Board) Global() (*models.GlobalStats, State) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.global, *b.states[SourceGlobal]
}

// Page applies v to the current coin list.
func (b *Board) Page(v View) (Page, State) {
	coins, st := b.Coins()
	return Apply(coins, v), st
}

// Subscribe registers for update notifications. The returned cancel func
// must be called to release the channel.
func (b *Board) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 4)
	b.subsMu.Lock()
	b.subs[ch] = struct{}{}
	b.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.subsMu.Lock()
			delete(b.subs, ch)
			b.subsMu.Unlock()
			close(ch)
		})
	}
}

func (b *Board) notify(u Update) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			// slow subscriber; it will read the latest state on its next update
		}
	}
}
