package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	maxClientMessage  = 512
	closeReasonServer = "change stream closed"
)

// WSOption configures the WebSocket handler.
type WSOption func(*WSHandler)

// WithWriteWait bounds each frame write.
func WithWriteWait(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

// WithPongWait sets how long a silent client is kept. Pings go out at 9/10
// of this interval.
func WithPongWait(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(*http.Request) bool) WSOption {
	return func(h *WSHandler) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// WSHandler streams committed changes of one resource over a WebSocket.
// Frames are JSON ChangeEvents; client messages are ignored.
type WSHandler struct {
	deps      Dependencies
	upgrader  websocket.Upgrader
	writeWait time.Duration
	pongWait  time.Duration
	logger    logger.Logger
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(deps Dependencies, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		writeWait: defaultWriteWait,
		pongWait:  defaultPongWait,
		logger:    logger.Get().Named("ws"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWS handles GET /ws?resource_id=...
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	resourceID := strings.TrimSpace(r.URL.Query().Get("resource_id"))
	if resourceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", ErrMissingResource)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := h.deps.Subscriber().Subscribe(ctx, resourceID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	defer stream.Unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	metrics.AddWebsocketConnections(1)
	defer metrics.AddWebsocketConnections(-1)
	h.logger.Debug(ctx, "viewer connected", logger.String("resource_id", resourceID))

	// The reader only services control frames and notices disconnects.
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pongWait * 9 / 10)
	defer ping.Stop()

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, closeReasonServer))
				return
			}
			if err := conn.WriteJSON(ch); err != nil {
				h.logger.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
