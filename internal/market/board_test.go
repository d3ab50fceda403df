package market

import (
	"errors"
	"testing"
	"time"

	"cryptotracker/internal/models"
)

func TestBoardLatestWins(t *testing.T) {
	b := NewBoard()
	now := time.Now()

	if !b.ApplyCoins(2, []models.CoinSnapshot{{ID: "fresh"}}, now) {
		t.Fatal("Expected seq 2 to be applied")
	}
	if b.ApplyCoins(1, []models.CoinSnapshot{{ID: "stale"}}, now.Add(time.Second)) {
		t.Error("Expected stale seq 1 to be rejected")
	}

	coins, st := b.Coins()
	if len(coins) != 1 || coins[0].ID != "fresh" {
		t.Errorf("Expected fresh data to survive, got %v", coins)
	}
	if st.Seq != 2 {
		t.Errorf("Expected seq 2, got %d", st.Seq)
	}
}

func TestBoardSourcesAreIndependent(t *testing.T) {
	b := NewBoard()
	now := time.Now()

	b.ApplyCoins(5, []models.CoinSnapshot{{ID: "btc"}}, now)
	if !b.ApplyGlobal(1, models.GlobalStats{Markets: 10}, now) {
		t.Error("Expected global seq 1 to apply regardless of coins seq")
	}

	g, _ := b.Global()
	if g == nil || g.Markets != 10 {
		t.Errorf("Expected global stats, got %v", g)
	}
}

func TestBoardFailKeepsLastGoodData(t *testing.T) {
	b := NewBoard()
	now := time.Now()
	b.ApplyCoins(1, []models.CoinSnapshot{{ID: "btc"}}, now)

	boom := errors.New("status 500")
	if !b.Fail(SourceCoins, 2, boom) {
		t.Fatal("Expected failure at seq 2 to be recorded")
	}

	coins, st := b.Coins()
	if len(coins) != 1 {
		t.Errorf("Expected last good data to be kept, got %v", coins)
	}
	if !errors.Is(st.Err, boom) {
		t.Errorf("Expected error state, got %v", st.Err)
	}
	if !st.FetchedAt.Equal(now) {
		t.Errorf("Expected fetched at of last success, got %v", st.FetchedAt)
	}

	// a late failure from an older request must not mask a newer success
	b.ApplyCoins(3, []models.CoinSnapshot{{ID: "eth"}}, now)
	if b.Fail(SourceCoins, 2, boom) {
		t.Error("Expected stale failure to be rejected")
	}
	if _, st := b.Coins(); st.Err != nil {
		t.Errorf("Expected clean state after success, got %v", st.Err)
	}
}

func TestBoardCoinLookup(t *testing.T) {
	b := NewBoard()
	b.ApplyCoins(1, []models.CoinSnapshot{{ID: "btc", Name: "Bitcoin"}}, time.Now())

	if c, ok := b.Coin("btc"); !ok || c.Name != "Bitcoin" {
		t.Errorf("Expected to find btc, got %v %v", c, ok)
	}
	if _, ok := b.Coin("doge"); ok {
		t.Error("Did not expect to find doge")
	}
}

func TestBoardSubscribe(t *testing.T) {
	b := NewBoard()
	updates, cancel := b.Subscribe()

	b.ApplyCoins(1, nil, time.Now())

	select {
	case u := <-updates:
		if u.Source != SourceCoins || u.Seq != 1 {
			t.Errorf("Unexpected update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for update")
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Error("Expected channel to be closed after cancel")
	}

	// applying after cancel must not panic
	b.ApplyCoins(2, nil, time.Now())
}
