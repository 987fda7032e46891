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
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

const defaultSubjectPrefix = "netatlas"

// NATSSourceConfig configures the broker-backed event source.
type NATSSourceConfig struct {
	// URL is the NATS server URL (nats://host:port).
	URL string
	// SubjectPrefix prefixes the device subjects. Default "netatlas".
	SubjectPrefix string
	// Name identifies the connection to the server operator.
	Name string
}

// NATSSource is the alternative push source for deployments where device
// events ride a broker instead of a direct WebSocket. Payloads arrive
// without an envelope; the subject determines the event type.
type NATSSource struct {
	cfg     NATSSourceConfig
	handler Handler
	logger  logger.Logger

	mu   sync.Mutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewNATSSource builds a source around the given handler.
func NewNATSSource(cfg NATSSourceConfig, handler Handler, log logger.Logger) *NATSSource {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}

	if cfg.Name == "" {
		cfg.Name = "netatlas"
	}

	return &NATSSource{
		cfg:     cfg,
		handler: handler,
		logger:  log.WithComponent("nats-source"),
	}
}

// subjectBindings maps broker subjects to envelope event types.
func (s *NATSSource) subjectBindings() []struct{ Subject, EventType string } {
	prefix := s.cfg.SubjectPrefix

	return []struct{ Subject, EventType string }{
		{prefix + ".device.sighted", EventDeviceSighted},
		{prefix + ".device.removed", EventDeviceRemoved},
		{prefix + ".snapshot", EventSnapshot},
	}
}

// Run connects, subscribes the device subjects, and blocks until the
// context is cancelled. Reconnection is delegated to the NATS client;
// its handlers surface state transitions to the Handler.
func (s *NATSSource) Run(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(s.cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Warn().Err(err).Msg("nats disconnected")
			s.handler.HandleConnectionState(models.ConnectionDisconnected)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			s.handler.HandleConnectionState(models.ConnectionConnected)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			s.logger.Warn().Err(err).Msg("nats subscription error")
		}),
	}

	s.handler.HandleConnectionState(models.ConnectionConnecting)

	nc, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		s.handler.HandleConnectionState(models.ConnectionFailed)
		return fmt.Errorf("connecting to nats %s: %w", s.cfg.URL, err)
	}

	s.mu.Lock()
	s.conn = nc
	s.mu.Unlock()

	for _, binding := range s.subjectBindings() {
		eventType := binding.EventType

		sub, err := nc.Subscribe(binding.Subject, func(msg *nats.Msg) {
			s.handler.HandleEvent(ctx, Event{
				Type:      eventType,
				Data:      msg.Data,
				Timestamp: time.Now().UTC(),
			})
		})
		if err != nil {
			nc.Close()
			return fmt.Errorf("subscribing to %s: %w", binding.Subject, err)
		}

		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}

	s.logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats source running")
	s.handler.HandleConnectionState(models.ConnectionConnected)

	<-ctx.Done()

	_ = s.Close()

	return ctx.Err()
}

// Close unsubscribes and drains the connection.
func (s *NATSSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	subs := s.subs
	s.conn = nil
	s.subs = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}

	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}

	return nil
}
