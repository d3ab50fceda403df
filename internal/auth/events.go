package auth

import (
	"context"
	"sync"

	"cryptotracker/internal/models"
)

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

type IdentityEvent struct {
	Kind     EventKind       `json:"kind"`
	Token    string          `json:"-"`
	Identity models.Identity `json:"identity"`
}

type broadcaster struct {
	mu   sync.RWMutex
	subs map[chan IdentityEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan IdentityEvent]struct{})}
}

func (b *broadcaster) subscribe(ctx context.Context) <-chan IdentityEvent {
	ch := make(chan IdentityEvent, 8)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// publish never blocks; a subscriber that falls behind misses events.
func (b *broadcaster) publish(ev IdentityEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
