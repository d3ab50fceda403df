package models

import (
	"time"
)

// CoinSnapshot is one market record as returned by /coins/markets.
// Numeric fields are nullable upstream.
type CoinSnapshot struct {
	ID                       string     `json:"id"`
	Symbol                   string     `json:"symbol"`
	Name                     string     `json:"name"`
	Image                    string     `json:"image"`
	MarketCapRank            *int       `json:"market_cap_rank"`
	CurrentPrice             *float64   `json:"current_price"`
	PriceChangePercentage24h *float64   `json:"price_change_percentage_24h"`
	TotalVolume              *float64   `json:"total_volume"`
	MarketCap                *float64   `json:"market_cap"`
	SparklineIn7d            *Sparkline `json:"sparkline_in_7d,omitempty"`
}

// Sparkline holds the 7 day hourly price series.
type Sparkline struct {
	Price []float64 `json:"price"`
}

// WatchlistEntry is the reduced projection of a coin kept in a user's watchlist.
type WatchlistEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Rank   *int   `json:"rank"`
	Symbol string `json:"symbol"`
}

// EntryFromCoin projects a snapshot into a watchlist entry.
func EntryFromCoin(c CoinSnapshot) WatchlistEntry {
	return WatchlistEntry{
		ID:     c.ID,
		Name:   c.Name,
		Image:  c.Image,
		Rank:   c.MarketCapRank,
		Symbol: c.Symbol,
	}
}

// UserAccount is the single per-user document.
type UserAccount struct {
	UserID    string           `json:"user_id"`
	Email     string           `json:"email"`
	Watchlist []WatchlistEntry `json:"watchlist"`
	CreatedAt time.Time        `json:"created_at"`
}

// Identity is a registered user as seen by the rest of the system.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session binds an opaque token to an identity until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity returns the identity the session was issued for.
func (s Session) Identity() Identity {
	return Identity{ID: s.UserID, Email: s.Email}
}

// GlobalStats mirrors the data object of /global.
type GlobalStats struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt                       int64              `json:"updated_at"`
}

// Sentiment is the coarse market mood shown next to the global stats.
type Sentiment struct {
	Dominance string `json:"dominance"`
	Volume    string `json:"volume"`
	Activity  string `json:"activity"`
}

// Sentiment derives the dashboard labels from the aggregate numbers.
func (g GlobalStats) Sentiment() Sentiment {
	s := Sentiment{Dominance: "Neutral", Volume: "Low", Activity: "Active"}
	if g.MarketCapPercentage["btc"] > 50 {
		s.Dominance = "Bullish"
	}
	if g.MarketCapChangePercentage24hUSD > 0 {
		s.Volume = "High"
	}
	if g.ActiveCryptocurrencies > 10000 {
		s.Activity = "Very Active"
	}
	return s
}

// TrendingCoin is one entry of /search/trending.
type TrendingCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb"`
	MarketCapRank int    `json:"market_cap_rank"`
	Score         int    `json:"score"`
}
