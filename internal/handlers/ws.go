package handlers

import (
	"context"
	"net/http"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client commands on /coins/ws.
const (
	actionView     = "view"
	actionShowMore = "show_more"
	actionReset    = "reset"
)

type viewCommand struct {
	Action string       `json:"action"`
	View   *market.View `json:"view,omitempty"`
}

type viewMessage struct {
	Type  string         `json:"type"`
	Page  *CoinsResponse `json:"page,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

const wsWriteTimeout = 10 * time.Second

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.allowOrigin,
	}
}

func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return len(s.CORSOrigins) == 0
}

// streamCoins keeps one client's view of the coin list live: it pushes a
// page whenever the client changes its view or the board changes.
func (s *Server) streamCoins(w http.ResponseWriter, r *http.Request) {
	// The span covers the upgrade only; the stream itself can live for hours.
	_, span, traceID := startSpan(r, "StreamCoinsHandler")
	span.End()

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.String("trace_id", traceID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := s.Board.Subscribe()
	defer unsubscribe()

	commands := make(chan viewCommand)
	readErr := make(chan error, 1)
	go func() {
		for {
			var cmd viewCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				readErr <- err
				return
			}
			select {
			case commands <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	view := market.DefaultView()
	send := func(msg viewMessage) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}
	sendPage := func() error {
		page, st := s.Board.Page(view)
		resp := coinsResponse(page, st)
		return send(viewMessage{Type: "page", Page: &resp})
	}

	logger.Log.Info("Coin stream client connected", zap.String("trace_id", traceID))
	defer logger.Log.Info("Coin stream client disconnected", zap.String("trace_id", traceID))

	if err := sendPage(); err != nil {
		return
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Debug("Coin stream read ended", zap.String("trace_id", traceID), zap.Error(err))
			}
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			err = sendPage()
		case cmd := <-commands:
			if cmdErr := applyCommand(&view, cmd, s.Board); cmdErr != nil {
				_, body := errorBody(cmdErr)
				err = send(viewMessage{Type: "error", Error: &body})
				break
			}
			err = sendPage()
		}
		if err != nil {
			logger.Log.Debug("Coin stream write failed", zap.String("trace_id", traceID), zap.Error(err))
			return
		}
	}
}

func applyCommand(view *market.View, cmd viewCommand, board *market.Board) error {
	switch cmd.Action {
	case actionView:
		if cmd.View == nil {
			return failure.Invalid("view command needs a view")
		}
		if err := cmd.View.Validate(); err != nil {
			return err
		}
		*view = *cmd.View
	case actionShowMore:
		page, _ := board.Page(*view)
		view.ShowMore(page.Total)
	case actionReset:
		view.Reset()
	default:
		return failure.Invalid("unknown action %q", cmd.Action)
	}
	return nil
}
