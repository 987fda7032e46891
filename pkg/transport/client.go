/*
 * Copyright 2026 NetAtlas Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

const (
	defaultMaxAttempts      = 5
	defaultHandshakeTimeout = 10 * time.Second
)

// StreamClientConfig configures the push-stream WebSocket client.
type StreamClientConfig struct {
	// URL is the ws:// or wss:// stream endpoint.
	URL string
	// APIKey, when set, is sent as X-API-Key on the handshake.
	APIKey string
	// MaxAttempts caps consecutive failed dials before the client gives up
	// and waits for a manual Reconnect. Default 5.
	MaxAttempts int
	// InitialBackoff/MaxBackoff bound the exponential retry schedule.
	// Defaults 1s and 30s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// StreamClient maintains the push connection. It dials, requests an
// initial snapshot, pumps envelopes to the Handler, and reconnects with
// bounded exponential backoff. Once the attempt budget is exhausted it
// parks in the failed state until Reconnect is called.
type StreamClient struct {
	cfg     StreamClientConfig
	handler Handler
	logger  logger.Logger
	dialer  *websocket.Dialer
	backoff Backoff

	reconnectCh chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	state  models.ConnectionState
	closed bool
}

// NewStreamClient builds a client around the given handler. Zero config
// fields take their defaults.
func NewStreamClient(cfg StreamClientConfig, handler Handler, log logger.Logger) *StreamClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &StreamClient{
		cfg:     cfg,
		handler: handler,
		logger:  log.WithComponent("stream-client"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		backoff:     Backoff{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff},
		reconnectCh: make(chan struct{}, 1),
		state:       models.ConnectionDisconnected,
	}
}

// Run drives the connect/pump/retry cycle until the context is cancelled
// or Close is called.
func (c *StreamClient) Run(ctx context.Context) error {
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.isClosed() {
			return nil
		}

		c.setState(models.ConnectionConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			c.logger.Warn().Err(err).Int("attempt", attempts).Msg("stream dial failed")

			if attempts >= c.cfg.MaxAttempts {
				c.setState(models.ConnectionFailed)
				c.logger.Error().
					Int("attempts", attempts).
					Msg("retry budget exhausted, waiting for manual reconnect")

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-c.reconnectCh:
					attempts = 0
				}

				continue
			}

			c.setState(models.ConnectionDisconnected)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff.Wait(attempts - 1)):
			case <-c.reconnectCh:
				attempts = 0
			}

			continue
		}

		attempts = 0
		c.drainReconnect()
		c.storeConn(conn)
		c.setState(models.ConnectionConnected)

		if err := c.requestSnapshot(conn); err != nil {
			c.logger.Warn().Err(err).Msg("initial snapshot request failed")
		}

		// Close the connection when the context ends so the pump unblocks.
		pumpDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-pumpDone:
			}
		}()

		c.readPump(ctx, conn)
		close(pumpDone)

		c.storeConn(nil)
		c.setState(models.ConnectionDisconnected)
	}
}

// Reconnect resets the retry budget and wakes the dial loop. It is the
// only way out of the failed state.
func (c *StreamClient) Reconnect() {
	select {
	case c.reconnectCh <- struct{}{}:
	default:
	}
}

// Close sends a clean close frame and tears the connection down. Run
// returns once the pump drains.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return conn.Close()
}

// State reports the current connection state.
func (c *StreamClient) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *StreamClient) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("X-API-Key", c.cfg.APIKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s (status %s): %w", c.cfg.URL, resp.Status, err)
		}

		return nil, fmt.Errorf("dialing %s: %w", c.cfg.URL, err)
	}

	return conn, nil
}

func (c *StreamClient) requestSnapshot(conn *websocket.Conn) error {
	return conn.WriteJSON(Event{Type: eventSnapshotRequest, Timestamp: time.Now().UTC()})
}

// readPump reads frames until the connection dies. A frame that fails to
// decode is dropped, not fatal: one malformed event must not cost the
// whole connection.
func (c *StreamClient) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("stream read failed")
			} else {
				c.logger.Debug().Err(err).Msg("stream closed")
			}

			return
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}

		c.dispatch(ctx, event)
	}
}

func (c *StreamClient) dispatch(ctx context.Context, event Event) {
	switch event.Type {
	case EventPing:
		// Keepalive, nothing to do.
	case EventError:
		c.logger.Warn().Str("error", event.Error).Msg("stream reported an error")
	case EventDeviceSighted, EventDeviceRemoved, EventSnapshot:
		c.handler.HandleEvent(ctx, event)
	default:
		c.logger.Debug().Str("type", event.Type).Msg("dropping unknown event type")
	}
}

func (c *StreamClient) setState(state models.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}

	c.state = state
	c.mu.Unlock()

	c.handler.HandleConnectionState(state)
}

func (c *StreamClient) storeConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *StreamClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// drainReconnect clears a stale manual-reconnect signal so it cannot
// short-circuit a later backoff wait.
func (c *StreamClient) drainReconnect() {
	select {
	case <-c.reconnectCh:
	default:
	}
}
