package market

import (
	"math"
	"sort"
	"strings"

	"cryptotracker/internal/models"
)

// Page is the visible slice of the filtered, sorted coin list.
type Page struct {
	Coins     []models.CoinSnapshot `json:"coins"`
	Total     int                   `json:"total"`
	Displayed int                   `json:"displayed"`
	HasMore   bool                  `json:"has_more"`
	View      View                  `json:"view"`
}

// Apply filters coins by the view's query, orders them by its sort key and
// direction, and cuts the first Count entries. The input is not modified.
func Apply(coins []models.CoinSnapshot, v View) Page {
	matched := Filter(coins, v.Query)
	Sort(matched, v.SortKey, v.Direction)

	total := len(matched)
	shown := min(max(v.Count, 0), total)

	return Page{
		Coins:     matched[:shown],
		Total:     total,
		Displayed: shown,
		HasMore:   shown < total,
		View:      v,
	}
}

// Filter returns a new slice with the coins whose name or symbol contains
// query, ignoring case. A blank query keeps everything.
func Filter(coins []models.CoinSnapshot, query string) []models.CoinSnapshot {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.CoinSnapshot, 0, len(coins))
	for _, c := range coins {
		if q == "" ||
			strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Symbol), q) {
			out = append(out, c)
		}
	}
	return out
}

// Sort orders coins in place. Missing numbers rank below every real value;
// equal keys keep their relative order.
func Sort(coins []models.CoinSnapshot, key SortKey, dir Direction) {
	less := lessFor(key)
	sort.SliceStable(coins, func(i, j int) bool {
		if dir == Descending {
			return less(coins[j], coins[i])
		}
		return less(coins[i], coins[j])
	})
}

func lessFor(key SortKey) func(a, b models.CoinSnapshot) bool {
	switch key {
	case SortName:
		return func(a, b models.CoinSnapshot) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortPrice:
		return byNumber(func(c models.CoinSnapshot) *float64 { return c.CurrentPrice })
	case SortMarketCap:
		return byNumber(func(c models.CoinSnapshot) *float64 { return c.MarketCap })
	case SortVolume:
		return byNumber(func(c models.CoinSnapshot) *float64 { return c.TotalVolume })
	case SortChange24h:
		return byNumber(func(c models.CoinSnapshot) *float64 { return c.PriceChangePercentage24h })
	default:
		return func(a, b models.CoinSnapshot) bool {
			return rankValue(a.MarketCapRank) < rankValue(b.MarketCapRank)
		}
	}
}

func byNumber(field func(models.CoinSnapshot) *float64) func(a, b models.CoinSnapshot) bool {
	return func(a, b models.CoinSnapshot) bool {
		return numberValue(field(a)) < numberValue(field(b))
	}
}

func numberValue(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return math.Inf(-1)
	}
	return *v
}

func rankValue(v *int) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return float64(*v)
}
