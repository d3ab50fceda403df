package memstore

import (
	"context"
	"sync"

	"cryptotracker/internal/models"
	"cryptotracker/internal/watchlist"
)

// Notifier is an in-process stand-in for the Redis watchlist channel.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[*feed]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[*feed]struct{})}
}

func (n *Notifier) Publish(ctx context.Context, userID string, list []models.WatchlistEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for f := range n.subs[userID] {
		select {
		case f.ch <- clone(list):
		default:
		}
	}
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context, userID string) (watchlist.Feed, error) {
	f := &feed{ch: make(chan []models.WatchlistEntry, 16)}
	f.close = func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[userID], f)
		close(f.ch)
	}

	n.mu.Lock()
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[*feed]struct{})
	}
	n.subs[userID][f] = struct{}{}
	n.mu.Unlock()
	return f, nil
}

type feed struct {
	ch    chan []models.WatchlistEntry
	once  sync.Once
	close func()
}

func (f *feed) Updates() <-chan []models.WatchlistEntry { return f.ch }

func (f *feed) Close() error {
	f.once.Do(f.close)
	return nil
}
