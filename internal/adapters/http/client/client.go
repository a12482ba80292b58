// Package client talks to the sheet API: it commits field writes, opens
// change streams and requests dice rolls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/openrpg/internal/domain/commit"
	"github.com/okian/openrpg/internal/domain/dice"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/internal/domain/types"
	"github.com/okian/openrpg/pkg/logger"
)

// Client is a remote sheet API.
type Client struct {
	base         *url.URL
	http         *http.Client
	dialer       *websocket.Dialer
	streamBuffer int
	retries      int
	retryDelay   time.Duration
	logger       logger.Logger
}

var (
	_ commit.Writer    = (*Client)(nil)
	_ sheet.Subscriber = (*Client)(nil)
)

// New creates a client for the server at baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:         u,
		http:         &http.Client{Timeout: 15 * time.Second},
		dialer:       websocket.DefaultDialer,
		streamBuffer: 64,
		retries:      2,
		retryDelay:   100 * time.Millisecond,
		logger:       logger.Get().Named("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Write commits one field under a new change ID and returns the value the
// server stored.
func (c *Client) Write(ctx context.Context, resourceID, fieldKey string, value any) (any, error) {
	return c.WriteChange(ctx, model.NewChange(resourceID, fieldKey, value))
}

// WriteChange commits ch under ch.ID. A lost response or a 502/503/504 is
// retried with the same ID, so the server applies the write at most once.
// Callers retrying on their own should reuse ch.
func (c *Client) WriteChange(ctx context.Context, ch model.Change) (any, error) {
	body := types.FieldWrite{
		ResourceID: ch.ResourceID,
		Field:      ch.FieldKey,
		Value:      ch.Value,
		ChangeID:   ch.ID,
	}
	var res types.FieldResult
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		err := c.post(ctx, "/sheet/field", body, &res)
		if err == nil {
			return res.Value, nil
		}
		if attempt >= c.retries || !retryable(ctx, err) {
			return nil, err
		}
		c.logger.Debug(ctx, "retrying field write",
			logger.String("change_id", ch.ID),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return errors.Is(err, ErrTransport)
}

// Snapshot fetches every stored field of resourceID.
func (c *Client) Snapshot(ctx context.Context, resourceID string) (map[string]any, error) {
	var snap types.Snapshot
	if err := c.do(ctx, http.MethodGet, "/sheet/"+url.PathEscape(resourceID), nil, &snap); err != nil {
		return nil, err
	}
	return snap.Fields, nil
}

// Roll rolls an explicit dice spec on the server.
func (c *Client) Roll(ctx context.Context, req types.DiceRequest) (dice.Roll, error) {
	var roll dice.Roll
	err := c.post(ctx, "/dice", req, &roll)
	return roll, err
}

// RollCharacteristic rolls the server's characteristic die.
func (c *Client) RollCharacteristic(ctx context.Context, req types.CharacteristicRollRequest) (dice.Roll, error) {
	var roll dice.Roll
	err := c.post(ctx, "/dice/characteristic", req, &roll)
	return roll, err
}

// RollSkills rolls one skill die per selected skill.
func (c *Client) RollSkills(ctx context.Context, req types.SkillRollRequest) ([]sheet.SkillOutcome, error) {
	var res types.SkillRollResponse
	if err := c.post(ctx, "/dice/skills", req, &res); err != nil {
		return nil, err
	}
	return res.Outcomes, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var e types.Error
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			se.Code, se.Message = e.Code, e.Message
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", path, ErrTransport, err)
	}
	return nil
}

func (c *Client) wsURL(resourceID string) string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"resource_id": {resourceID}}.Encode()
	return u.String()
}
