package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/pkg/logger"
)

// Subscribe opens a change stream for resourceID over /ws. The stream's
// channel closes when the connection drops, when ctx is done, or after
// Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, resourceID string) (sheet.Stream, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(resourceID), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("subscribe %s: %w", resourceID, &StatusError{Status: resp.StatusCode})
		}
		return nil, fmt.Errorf("subscribe %s: %w", resourceID, err)
	}

	s := &stream{
		conn:   conn,
		events: make(chan model.Change, c.streamBuffer),
		done:   make(chan struct{}),
		logger: c.logger,
	}
	s.stop = context.AfterFunc(ctx, s.Unsubscribe)
	go s.read(ctx)
	return s, nil
}

type stream struct {
	conn   *websocket.Conn
	events chan model.Change
	done   chan struct{}
	once   sync.Once
	stop   func() bool
	logger logger.Logger
}

func (s *stream) Events() <-chan model.Change { return s.events }

func (s *stream) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func (s *stream) read(ctx context.Context) {
	defer close(s.events)
	defer s.conn.Close()
	for {
		var ch model.Change
		if err := s.conn.ReadJSON(&ch); err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
					!errors.Is(err, context.Canceled) {
					s.logger.Warn(ctx, "change stream dropped", logger.Error(err))
				}
			}
			return
		}
		select {
		case s.events <- ch:
		case <-s.done:
			return
		}
	}
}
