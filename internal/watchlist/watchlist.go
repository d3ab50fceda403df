// Package watchlist manages the per-user list of saved coins.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptotracker/internal/auth"
	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

// Store is the document store holding one account document per user.
type Store interface {
	GetAccount(ctx context.Context, userID string) (*models.UserAccount, error)
	CreateAccount(ctx context.Context, acct *models.UserAccount) error
	SaveWatchlist(ctx context.Context, userID string, list []models.WatchlistEntry) error
}

// Feed is a live stream of watchlist changes for one user.
type Feed interface {
	Updates() <-chan []models.WatchlistEntry
	Close() error
}

// Notifier fans watchlist changes out to subscribers, possibly across
// processes.
type Notifier interface {
	Publish(ctx context.Context, userID string, list []models.WatchlistEntry) error
	Subscribe(ctx context.Context, userID string) (Feed, error)
}

type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// List returns the caller's watchlist. A user without a document has an
// empty list.
func (s *Service) List(ctx context.Context) ([]models.WatchlistEntry, error) {
	ident, ok := auth.FromContext(ctx)
	if !ok {
		return nil, failure.ErrNotAuthenticated
	}

	acct, err := s.store.GetAccount(ctx, ident.ID)
	if errors.Is(err, failure.ErrNotFound) {
		return []models.WatchlistEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	return acct.Watchlist, nil
}

// Add saves coin to the caller's watchlist, creating the account document on
// first use. Adding an id that is already saved leaves the list unchanged.
func (s *Service) Add(ctx context.Context, coin models.WatchlistEntry) ([]models.WatchlistEntry, error) {
	ident, ok := auth.FromContext(ctx)
	if !ok {
		return nil, failure.ErrNotAuthenticated
	}
	if coin.ID == "" {
		return nil, failure.Invalid("coin id is required")
	}

	acct, err := s.store.GetAccount(ctx, ident.ID)
	switch {
	case errors.Is(err, failure.ErrNotFound):
		acct = &models.UserAccount{
			UserID:    ident.ID,
			Email:     ident.Email,
			Watchlist: []models.WatchlistEntry{coin},
			CreatedAt: s.now(),
		}
		if err := s.store.CreateAccount(ctx, acct); err != nil {
			return nil, fmt.Errorf("create account document: %w", err)
		}
		logger.Log.Info("Created account document on first save",
			zap.String("user_id", ident.ID),
			zap.String("coin_id", coin.ID),
		)
	case err != nil:
		return nil, fmt.Errorf("load watchlist: %w", err)
	default:
		if contains(acct.Watchlist, coin.ID) {
			return acct.Watchlist, nil
		}
		acct.Watchlist = append(acct.Watchlist, coin)
		if err := s.store.SaveWatchlist(ctx, ident.ID, acct.Watchlist); err != nil {
			return nil, fmt.Errorf("save watchlist: %w", err)
		}
	}

	s.publish(ctx, ident.ID, acct.Watchlist)
	return acct.Watchlist, nil
}

// Remove drops every entry with coinID from the caller's watchlist.
func (s *Service) Remove(ctx context.Context, coinID string) ([]models.WatchlistEntry, error) {
	ident, ok := auth.FromContext(ctx)
	if !ok {
		return nil, failure.ErrNotAuthenticated
	}

	acct, err := s.store.GetAccount(ctx, ident.ID)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}

	kept := make([]models.WatchlistEntry, 0, len(acct.Watchlist))
	for _, e := range acct.Watchlist {
		if e.ID != coinID {
			kept = append(kept, e)
		}
	}
	if err := s.store.SaveWatchlist(ctx, ident.ID, kept); err != nil {
		return nil, fmt.Errorf("save watchlist: %w", err)
	}

	s.publish(ctx, ident.ID, kept)
	return kept, nil
}

// publish is best effort: the write already succeeded, subscribers will
// catch up on their next change or reconnect.
func (s *Service) publish(ctx context.Context, userID string, list []models.WatchlistEntry) {
	if err := s.notifier.Publish(ctx, userID, list); err != nil {
		logger.Log.Warn("Failed to publish watchlist change",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func contains(list []models.WatchlistEntry, id string) bool {
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Subscription delivers the caller's watchlist now and after every change.
// It is released by Close or by cancelling the context it was opened with.
type Subscription struct {
	updates chan []models.WatchlistEntry
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Updates is closed when the subscription ends.
func (s *Subscription) Updates() <-chan []models.WatchlistEntry { return s.updates }

// Done is closed once the subscription has released its resources.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Subscribe opens a live view of the caller's watchlist.
func (s *Service) Subscribe(ctx context.Context) (*Subscription, error) {
	ident, ok := auth.FromContext(ctx)
	if !ok {
		return nil, failure.ErrNotAuthenticated
	}

	ctx, cancel := context.WithCancel(ctx)

	// Subscribe before reading so no change between the two is lost.
	feed, err := s.notifier.Subscribe(ctx, ident.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe watchlist: %w", err)
	}

	current, err := s.List(ctx)
	if err != nil {
		feed.Close()
		cancel()
		return nil, err
	}

	sub := &Subscription{
		updates: make(chan []models.WatchlistEntry, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sub.updates <- current

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		defer feed.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case list, ok := <-feed.Updates():
				if !ok {
					return
				}
				select {
				case sub.updates <- list:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}
