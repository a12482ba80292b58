package client

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/openrpg/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithStreamBuffer sets how many received changes a stream holds before
// the reader waits for the consumer.
func WithStreamBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.streamBuffer = n
		}
	}
}

// WithRetries sets how many times a field write is resent after a lost
// reply, and the delay before the first resend. The delay doubles each time.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
