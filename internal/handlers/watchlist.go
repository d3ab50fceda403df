package handlers

import (
	"net/http"
	"strings"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) listWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "ListWatchlistHandler")
	defer span.End()

	list, err := s.Watchlist.List(ctx)
	if err != nil {
		writeError(w, traceID, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "Watchlist retrieved successfully", Data: list})
}

// addToWatchlist accepts a full entry or just an id. Bare ids are filled in
// from the current market data.
func (s *Server) addToWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "AddToWatchlistHandler")
	defer span.End()

	var entry models.WatchlistEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, traceID, err)
		return
	}
	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" {
		writeError(w, traceID, failure.Invalid("coin id is required"))
		return
	}

	if entry.Name == "" {
		coin, ok := s.Board.Coin(entry.ID)
		if !ok {
			writeError(w, traceID, failure.Invalid("unknown coin %q", entry.ID))
			return
		}
		entry = models.EntryFromCoin(coin)
	}

	list, err := s.Watchlist.Add(ctx, entry)
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	logger.Log.Info("Coin saved to watchlist",
		zap.String("trace_id", traceID),
		zap.String("coin_id", entry.ID),
	)
	writeJSON(w, http.StatusOK, Response{Message: "Coin added to watchlist", Data: list})
}

func (s *Server) removeFromWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "RemoveFromWatchlistHandler")
	defer span.End()

	coinID := mux.Vars(r)["id"]
	list, err := s.Watchlist.Remove(ctx, coinID)
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	logger.Log.Info("Coin removed from watchlist",
		zap.String("trace_id", traceID),
		zap.String("coin_id", coinID),
	)
	writeJSON(w, http.StatusOK, Response{Message: "Coin removed from watchlist", Data: list})
}
