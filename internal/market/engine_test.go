package market

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"cryptotracker/internal/models"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func ids(coins []models.CoinSnapshot) []string {
	out := make([]string, len(coins))
	for k, c := range coins {
		out[k] = c.ID
	}
	return out
}

func sampleCoins() []models.CoinSnapshot {
	return []models.CoinSnapshot{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", MarketCapRank: i(1), CurrentPrice: f(65000), MarketCap: f(1.2e12), TotalVolume: f(3e10), PriceChangePercentage24h: f(1.5)},
		{ID: "ethereum", Name: "Ethereum", Symbol: "eth", MarketCapRank: i(2), CurrentPrice: f(3200), MarketCap: f(3.8e11), TotalVolume: f(1.5e10), PriceChangePercentage24h: f(-2.1)},
		{ID: "tether", Name: "Tether", Symbol: "usdt", MarketCapRank: i(3), CurrentPrice: f(1), MarketCap: f(1.1e11), TotalVolume: f(5e10), PriceChangePercentage24h: f(0.01)},
		{ID: "ethereum-classic", Name: "Ethereum Classic", Symbol: "etc", MarketCapRank: i(30), CurrentPrice: f(25), MarketCap: nil, TotalVolume: f(2e8), PriceChangePercentage24h: nil},
		{ID: "solana", Name: "Solana", Symbol: "sol", MarketCapRank: i(5), CurrentPrice: f(150), MarketCap: f(7e10), TotalVolume: f(3e9), PriceChangePercentage24h: f(4.2)},
	}
}

func TestScenarioMarketCapDescending(t *testing.T) {
	coins := []models.CoinSnapshot{
		{ID: "btc", MarketCap: f(900)},
		{ID: "eth", MarketCap: f(400)},
	}

	page := Apply(coins, View{SortKey: SortMarketCap, Direction: Descending, Count: 10})

	if got := strings.Join(ids(page.Coins), ","); got != "btc,eth" {
		t.Errorf("Expected btc,eth, got %s", got)
	}
}

func TestScenarioQueryEth(t *testing.T) {
	coins := []models.CoinSnapshot{
		{ID: "btc", Name: "btc", Symbol: "btc", MarketCap: f(900)},
		{ID: "eth", Name: "eth", Symbol: "eth", MarketCap: f(400)},
	}

	page := Apply(coins, View{Query: "eth", SortKey: SortRank, Direction: Ascending, Count: 10})

	if page.Total != 1 || page.Coins[0].ID != "eth" {
		t.Errorf("Expected only eth, got %v", ids(page.Coins))
	}
}

func TestFilter(t *testing.T) {
	coins := sampleCoins()

	testCases := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "empty query matches all", query: "", expected: ids(coins)},
		{name: "blank query matches all", query: "   ", expected: ids(coins)},
		{name: "name substring", query: "ether", expected: []string{"ethereum", "tether", "ethereum-classic"}},
		{name: "symbol match", query: "SOL", expected: []string{"solana"}},
		{name: "case folded", query: "BiTcOiN", expected: []string{"bitcoin"}},
		{name: "no match", query: "doge", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Filter(coins, tc.query))
			if strings.Join(got, ",") != strings.Join(tc.expected, ",") {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestFilterOnlyReturnsMatches(t *testing.T) {
	coins := sampleCoins()
	for _, q := range []string{"e", "ET", "c", "usd", "x"} {
		for _, c := range Filter(coins, q) {
			lq := strings.ToLower(q)
			if !strings.Contains(strings.ToLower(c.Name), lq) && !strings.Contains(strings.ToLower(c.Symbol), lq) {
				t.Errorf("Query %q returned non-matching coin %s", q, c.ID)
			}
		}
	}
}

func TestSortTotalOrder(t *testing.T) {
	keys := []SortKey{SortRank, SortName, SortPrice, SortMarketCap, SortVolume, SortChange24h}
	dirs := []Direction{Ascending, Descending}

	value := func(c models.CoinSnapshot, k SortKey) float64 {
		switch k {
		case SortPrice:
			return numberValue(c.CurrentPrice)
		case SortMarketCap:
			return numberValue(c.MarketCap)
		case SortVolume:
			return numberValue(c.TotalVolume)
		case SortChange24h:
			return numberValue(c.PriceChangePercentage24h)
		default:
			return rankValue(c.MarketCapRank)
		}
	}

	for _, k := range keys {
		for _, d := range dirs {
			t.Run(fmt.Sprintf("%s_%s", k, d), func(t *testing.T) {
				page := Apply(sampleCoins(), View{SortKey: k, Direction: d, Count: 100})
				for n := 1; n < len(page.Coins); n++ {
					a, b := page.Coins[n-1], page.Coins[n]
					if k == SortName {
						an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
						if (d == Ascending && an > bn) || (d == Descending && an < bn) {
							t.Errorf("Names out of order at %d: %s, %s", n, a.Name, b.Name)
						}
						continue
					}
					av, bv := value(a, k), value(b, k)
					if (d == Ascending && av > bv) || (d == Descending && av < bv) {
						t.Errorf("Values out of order at %d: %v, %v", n, av, bv)
					}
				}
			})
		}
	}
}

func TestSortMissingValuesAreLowest(t *testing.T) {
	coins := []models.CoinSnapshot{
		{ID: "none"},
		{ID: "neg", PriceChangePercentage24h: f(-50)},
		{ID: "nan", PriceChangePercentage24h: f(math.NaN())},
		{ID: "pos", PriceChangePercentage24h: f(3)},
	}

	asc := Apply(coins, View{SortKey: SortChange24h, Direction: Ascending, Count: 10})
	if got := strings.Join(ids(asc.Coins), ","); got != "none,nan,neg,pos" {
		t.Errorf("Expected missing values first ascending, got %s", got)
	}

	desc := Apply(coins, View{SortKey: SortMarketCap, Direction: Descending, Count: 10})
	if len(desc.Coins) != 4 {
		t.Fatalf("Expected 4 coins, got %d", len(desc.Coins))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	coins := sampleCoins()
	before := strings.Join(ids(coins), ",")

	Apply(coins, View{SortKey: SortName, Direction: Descending, Count: 2})

	if after := strings.Join(ids(coins), ","); after != before {
		t.Errorf("Input reordered: %s -> %s", before, after)
	}
}

func TestPagination(t *testing.T) {
	coins := make([]models.CoinSnapshot, 0, 35)
	for n := 1; n <= 35; n++ {
		coins = append(coins, models.CoinSnapshot{ID: fmt.Sprintf("c%02d", n), Name: fmt.Sprintf("Coin %d", n), MarketCapRank: i(n)})
	}

	v := DefaultView()
	page := Apply(coins, v)
	if page.Displayed != InitialPageSize || !page.HasMore {
		t.Fatalf("Expected first page of %d with more, got %d (more=%v)", InitialPageSize, page.Displayed, page.HasMore)
	}

	prev := v.Count
	for n := 0; n < 10; n++ {
		v.ShowMore(page.Total)
		if v.Count < prev {
			t.Fatalf("Count decreased from %d to %d", prev, v.Count)
		}
		prev = v.Count
		page = Apply(coins, v)
		if page.Displayed > page.Total {
			t.Fatalf("Displayed %d exceeds total %d", page.Displayed, page.Total)
		}
	}

	if page.Displayed != 35 || page.HasMore {
		t.Errorf("Expected all 35 displayed after repeated show more, got %d", page.Displayed)
	}
	if v.Count != 35 {
		t.Errorf("Expected count capped at total 35, got %d", v.Count)
	}

	v.Query = "coin 1"
	v.SortKey = SortName
	v.Reset()
	if v != DefaultView() {
		t.Errorf("Expected reset to default view, got %+v", v)
	}
}

func TestShowMoreDisplayedIsMinOfTotalAndRequested(t *testing.T) {
	coins := sampleCoins()
	v := View{SortKey: SortRank, Direction: Ascending, Count: 2}

	page := Apply(coins, v)
	if page.Displayed != 2 {
		t.Errorf("Expected 2 displayed, got %d", page.Displayed)
	}

	v.ShowMore(page.Total)
	page = Apply(coins, v)
	if page.Displayed != min(page.Total, v.Count) {
		t.Errorf("Expected displayed %d, got %d", min(page.Total, v.Count), page.Displayed)
	}
}
