package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cryptotracker/internal/auth"
	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"

	"go.uber.org/zap"
)

// streamWatchlist pushes the caller's watchlist as server-sent events: once
// on connect and again on every change. The stream ends when the client
// leaves or the session is signed out.
func (s *Server) streamWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, span, traceID := startSpan(r, "StreamWatchlistHandler")
	span.End()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.Watchlist.Subscribe(ctx)
	if err != nil {
		writeError(w, traceID, err)
		return
	}
	defer sub.Close()

	token := auth.TokenFromContext(ctx)
	ident, _ := auth.FromContext(ctx)
	identityEvents := s.Auth.Watch(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Log.Info("Watchlist stream client connected",
		zap.String("trace_id", traceID),
		zap.String("user_id", ident.ID),
	)
	defer logger.Log.Info("Watchlist stream client disconnected",
		zap.String("trace_id", traceID),
		zap.String("user_id", ident.ID),
	)

	heartbeat := time.NewTicker(s.heartbeat())
	defer heartbeat.Stop()

	signedOut := func() {
		fmt.Fprint(w, "event: signed_out\ndata: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case list, ok := <-sub.Updates():
			if !ok {
				return
			}
			data, err := json.Marshal(list)
			if err != nil {
				logger.Log.Error("Failed to marshal watchlist", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: watchlist\ndata: %s\n\n", data)
			flusher.Flush()

		case ev, ok := <-identityEvents:
			if !ok {
				return
			}
			if ev.Kind == auth.SignedOut && ev.Token == token {
				signedOut()
				return
			}

		case <-heartbeat.C:
			// Sign-outs on other instances only show up here.
			if _, err := s.Auth.Resolve(ctx, token); errors.Is(err, failure.ErrNotAuthenticated) {
				signedOut()
				return
			}
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
