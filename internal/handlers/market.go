package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cryptotracker/internal/cache"
	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

const (
	trendingPrefix = "trending_"
	trendingTTL    = 5 * time.Minute
)

var errNotLoaded = errors.New("market data not loaded yet")

// CoinsResponse is a page of the coin list. Error is set when the latest
// refresh failed and the coins are the last good data.
type CoinsResponse struct {
	market.Page
	FetchedAt time.Time      `json:"fetched_at"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

func coinsResponse(page market.Page, st market.State) CoinsResponse {
	resp := CoinsResponse{Page: page, FetchedAt: st.FetchedAt}
	if st.Err != nil {
		_, body := errorBody(st.Err)
		resp.Error = &body
	}
	return resp
}

func (s *Server) listCoins(w http.ResponseWriter, r *http.Request) {
	_, span, traceID := startSpan(r, "ListCoinsHandler")
	defer span.End()

	view, err := market.ParseView(r.URL.Query())
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	page, st := s.Board.Page(view)
	if st.FetchedAt.IsZero() && st.Err != nil {
		writeError(w, traceID, st.Err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Coins retrieved successfully",
		Data:    coinsResponse(page, st),
	})
}

// refreshMarket is the manual retry after a failed load.
func (s *Server) refreshMarket(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "RefreshMarketHandler")
	defer span.End()

	if s.Refresher == nil {
		writeError(w, traceID, failure.Invalid("manual refresh is handled by the ingestion service"))
		return
	}

	s.Refresher.Refresh(ctx)

	_, st := s.Board.Coins()
	if st.Err != nil {
		writeError(w, traceID, st.Err)
		return
	}
	if s.Cache != nil {
		s.Cache.InvalidateByPrefix(ctx, trendingPrefix, "/trending")
	}
	logger.Log.Info("Market data refreshed on request",
		zap.String("trace_id", traceID),
		zap.Uint64("seq", st.Seq),
	)
	writeJSON(w, http.StatusOK, Response{Message: "Market data refreshed"})
}

type GlobalResponse struct {
	Stats     models.GlobalStats `json:"stats"`
	Sentiment models.Sentiment   `json:"sentiment"`
	FetchedAt time.Time          `json:"fetched_at"`
	Error     *ErrorResponse     `json:"error,omitempty"`
}

func (s *Server) globalStats(w http.ResponseWriter, r *http.Request) {
	_, span, traceID := startSpan(r, "GlobalStatsHandler")
	defer span.End()

	stats, st := s.Board.Global()
	if stats == nil {
		err := st.Err
		if err == nil {
			err = failure.Network(errNotLoaded)
		}
		writeError(w, traceID, err)
		return
	}

	resp := GlobalResponse{Stats: *stats, Sentiment: stats.Sentiment(), FetchedAt: st.FetchedAt}
	if st.Err != nil {
		_, body := errorBody(st.Err)
		resp.Error = &body
	}
	writeJSON(w, http.StatusOK, Response{Message: "Global stats retrieved successfully", Data: resp})
}

func (s *Server) trending(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "TrendingHandler")
	defer span.End()

	cacheKey := cache.GenerateCacheKey(trendingPrefix, r.URL.Query())
	if s.Cache != nil {
		cached, err := s.Cache.GetCache(ctx, cacheKey, "/trending")
		if err == nil && cached != "" {
			logger.Log.Info("Cache hit for /trending",
				zap.String("trace_id", traceID),
				zap.String("cache_key", cacheKey),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(cached))
			return
		}
	}

	coins, err := s.Trending.FetchTrending(ctx)
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	respBytes, err := json.Marshal(Response{Message: "Trending coins retrieved successfully", Data: coins})
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	if s.Cache != nil {
		if err := s.Cache.SetCache(ctx, cacheKey, string(respBytes), trendingTTL); err != nil {
			logger.Log.Warn("Failed to store response in cache",
				zap.String("trace_id", traceID),
				zap.String("cache_key", cacheKey),
				zap.Error(err),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(respBytes)
}
