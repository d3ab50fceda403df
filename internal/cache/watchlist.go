package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"
	"cryptotracker/internal/watchlist"

	"go.uber.org/zap"
)

const watchlistChannelPrefix = "watchlist:"

// WatchlistNotifier carries watchlist changes between API instances over
// Redis pub/sub, one channel per user.
type WatchlistNotifier struct {
	client *Client
}

func NewWatchlistNotifier(client *Client) *WatchlistNotifier {
	return &WatchlistNotifier{client: client}
}

func (n *WatchlistNotifier) Publish(ctx context.Context, userID string, list []models.WatchlistEntry) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	if err := n.client.Publish(ctx, watchlistChannelPrefix+userID, payload); err != nil {
		return failure.Store(failure.CodeUnavailable, err)
	}
	return nil
}

func (n *WatchlistNotifier) Subscribe(ctx context.Context, userID string) (watchlist.Feed, error) {
	sub, err := n.client.Subscribe(ctx, watchlistChannelPrefix+userID)
	if err != nil {
		return nil, failure.Store(failure.CodeUnavailable, err)
	}

	f := &watchlistFeed{
		sub:     sub,
		updates: make(chan []models.WatchlistEntry, 4),
		done:    make(chan struct{}),
	}
	go f.pump(userID)
	return f, nil
}

type watchlistFeed struct {
	sub     *Subscriber
	updates chan []models.WatchlistEntry
	done    chan struct{}
	once    sync.Once
}

func (f *watchlistFeed) pump(userID string) {
	defer close(f.updates)
	for msg := range f.sub.Channel() {
		var list []models.WatchlistEntry
		if err := json.Unmarshal([]byte(msg.Payload), &list); err != nil {
			logger.Log.Error("Error unmarshaling watchlist message",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		select {
		case f.updates <- list:
		case <-f.done:
			return
		}
	}
}

func (f *watchlistFeed) Updates() <-chan []models.WatchlistEntry { return f.updates }

func (f *watchlistFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.sub.Close()
	})
	return err
}
