package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/models"
)

func TestThrottleWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	th := NewThrottle(2, time.Minute)
	th.nowFn = func() time.Time { return now }
	ctx := context.Background()

	for n, want := range []bool{true, true, false} {
		got, _ := th.Allow(ctx, "a@example.com")
		if got != want {
			t.Errorf("attempt %d allowed = %v, want %v", n, got, want)
		}
	}
	if ok, _ := th.Allow(ctx, "b@example.com"); !ok {
		t.Error("keys should be limited independently")
	}

	now = now.Add(30 * time.Second)
	if ok, _ := th.Allow(ctx, "a@example.com"); !ok {
		t.Error("attempt after half the window was refused")
	}
	if ok, _ := th.Allow(ctx, "a@example.com"); ok {
		t.Error("half a window should refill a single attempt")
	}

	now = now.Add(time.Minute)
	for n := 0; n < 2; n++ {
		if ok, _ := th.Allow(ctx, "a@example.com"); !ok {
			t.Errorf("attempt %d after the window was refused", n)
		}
	}
}

func TestSessionsExpire(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewSessions()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	sess, err := s.Create(ctx, models.Identity{ID: "u1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, sess.Token); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	now = now.Add(time.Hour)
	if _, err := s.Get(ctx, sess.Token); !errors.Is(err, failure.ErrNotAuthenticated) {
		t.Errorf("Get() after expiry error = %v", err)
	}
}

func TestStoreCopiesWatchlist(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	list := []models.WatchlistEntry{{ID: "bitcoin"}}
	if err := s.CreateAccount(ctx, &models.UserAccount{UserID: "u1", Watchlist: list}); err != nil {
		t.Fatal(err)
	}
	list[0].ID = "mutated"

	acct, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if acct.Watchlist[0].ID != "bitcoin" {
		t.Errorf("stored list aliased the caller's slice: %+v", acct.Watchlist)
	}
}
