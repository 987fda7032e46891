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

// Package core assembles the netatlas pipeline: transports feed raw
// observations in, the identity normalizer and registry fold them into a
// canonical device set, topology inference and the layout engine derive the
// view, and subscribers receive each published snapshot.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netatlas/netatlas/pkg/identity"
	"github.com/netatlas/netatlas/pkg/layout"
	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
	"github.com/netatlas/netatlas/pkg/registry"
	"github.com/netatlas/netatlas/pkg/topology"
	"github.com/netatlas/netatlas/pkg/transport"
)

var (
	// ErrUnknownStrategy is returned by SetLayoutStrategy for labels that
	// name no layout strategy. The current strategy is left untouched.
	ErrUnknownStrategy = errors.New("unknown layout strategy")

	errNilConfig          = errors.New("config must not be nil")
	errNoIngestConfigured = errors.New("no event source configured: set a stream, NATS or pull endpoint")
	errAlreadyStarted     = errors.New("service already started")
)

// reconnector is the optional capability an event source exposes for
// manual reconnection after its retry budget is exhausted.
type reconnector interface {
	Reconnect()
}

// Service is the single writer for all topology state. Every observation,
// regardless of which transport delivered it, passes through one mutation
// lock: apply to the registry, rebuild the derived view, publish. Readers
// never wait on that lock; they load the last published snapshot.
type Service struct {
	cfg    *Config
	logger logger.Logger

	store  *registry.Store
	engine *layout.Engine

	source transport.EventSource
	puller *transport.Puller

	// mu serializes mutations; current holds the last published snapshot
	// and is the only state readers touch.
	mu        sync.Mutex
	strategy  models.LayoutStrategy
	connState models.ConnectionState
	current   atomic.Pointer[models.Snapshot]

	subs *subscriberHub

	runCancel context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
}

// NewService builds a Service wired to the transports named in cfg. The
// websocket stream takes precedence over NATS when both are configured; a
// pull endpoint adds the periodic snapshot fetch alongside either. At
// least one source must be configured.
func NewService(cfg *Config, log logger.Logger) (*Service, error) {
	svc, err := newService(cfg, log)
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.Stream.URL != "":
		svc.source = transport.NewStreamClient(transport.StreamClientConfig{
			URL:            cfg.Stream.URL,
			APIKey:         cfg.Stream.APIKey,
			MaxAttempts:    cfg.Stream.ReconnectMaxAttempts,
			InitialBackoff: time.Duration(cfg.Stream.InitialBackoff),
			MaxBackoff:     time.Duration(cfg.Stream.MaxBackoff),
		}, svc, log)

		if cfg.NATS.URL != "" {
			svc.logger.Warn().Msg("both stream and NATS sources configured, using the stream")
		}
	case cfg.NATS.URL != "":
		svc.source = transport.NewNATSSource(transport.NATSSourceConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, svc, log)
	}

	if cfg.Pull.URL != "" {
		svc.attachPuller(transport.NewHTTPSnapshotFetcher(cfg.Pull.URL, cfg.Pull.APIKey, log))
	}

	if svc.source == nil && svc.puller == nil {
		return nil, errNoIngestConfigured
	}

	return svc, nil
}

// NewServiceWithSources builds a Service around caller-supplied transports
// instead of the config-named ones, for embedding behind custom plumbing.
// Either source or fetcher may be nil.
func NewServiceWithSources(cfg *Config, source transport.EventSource, fetcher transport.SnapshotFetcher, log logger.Logger) (*Service, error) {
	svc, err := newService(cfg, log)
	if err != nil {
		return nil, err
	}

	svc.source = source
	if fetcher != nil {
		svc.attachPuller(fetcher)
	}

	return svc, nil
}

func newService(cfg *Config, log logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:       cfg,
		logger:    log.WithComponent("core"),
		store:     registry.NewStore(log.WithComponent("registry")),
		engine:    layout.NewEngine(cfg.Layout.Seed, log.WithComponent("layout")),
		strategy:  cfg.Layout.Strategy,
		connState: models.ConnectionDisconnected,
		subs:      newSubscriberHub(log.WithComponent("subscribers")),
	}

	svc.current.Store(&models.Snapshot{
		ConnectionState: svc.connState,
		LayoutStrategy:  svc.strategy,
		GeneratedAt:     time.Now().UTC(),
	})

	return svc, nil
}

func (s *Service) attachPuller(fetcher transport.SnapshotFetcher) {
	s.puller = transport.NewPuller(fetcher, s, time.Duration(s.cfg.Pull.Interval), nil, s.logger)
}

// Start launches the configured transports. It returns immediately; the
// transports run until Stop or until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runCancel != nil {
		return errAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	if s.source != nil {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			if err := s.source.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("event source stopped")
			}
		}()
	}

	if s.puller != nil {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			if err := s.puller.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("puller stopped")
			}
		}()
	}

	s.logger.Info().
		Bool("stream", s.source != nil).
		Bool("pull", s.puller != nil).
		Str("strategy", string(s.strategy)).
		Msg("netatlas core started")

	return nil
}

// Stop shuts the transports down and closes all subscriber channels.
// Observations still in flight when Stop is called are discarded, not
// applied. Stop is idempotent.
func (s *Service) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	cancel := s.runCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if s.source != nil {
		if err := s.source.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("event source close")
		}
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.subs.closeAll()
	s.logger.Info().Msg("netatlas core stopped")

	return nil
}

// Snapshot returns the last published view. The caller must treat it as
// read-only; its slices are shared with every other reader of the same
// publication.
func (s *Service) Snapshot() models.Snapshot {
	return *s.current.Load()
}

// Subscribe registers a consumer for future snapshot publications and
// returns its subscription id and receive channel. Delivery never blocks
// the pipeline: a slow consumer's pending snapshot is replaced by the
// newest one, so consumers may miss intermediate states but always
// converge on the latest.
func (s *Service) Subscribe() (string, <-chan models.Snapshot) {
	return s.subs.subscribe()
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids
// are a no-op.
func (s *Service) Unsubscribe(id string) {
	s.subs.unsubscribe(id)
}

// SetLayoutStrategy switches the active layout and republishes with every
// device repositioned. No observation is re-ingested; only positions
// change. Unknown labels return ErrUnknownStrategy and change nothing.
func (s *Service) SetLayoutStrategy(strategy models.LayoutStrategy) error {
	parsed, ok := models.ParseLayoutStrategy(string(strategy))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strategy == parsed {
		return nil
	}

	s.strategy = parsed
	s.logger.Info().Str("strategy", string(parsed)).Msg("layout strategy changed")
	s.rebuildLocked()

	return nil
}

// ForceResync requests an immediate full pull, bypassing the interval
// timer. Without a configured pull endpoint this is a no-op.
func (s *Service) ForceResync() {
	if s.puller == nil {
		s.logger.Debug().Msg("resync requested but no pull endpoint configured")
		return
	}

	s.puller.TriggerNow()
}

// Reconnect asks a failed event source to start dialing again. Sources
// that manage their own reconnection ignore it.
func (s *Service) Reconnect() {
	if r, ok := s.source.(reconnector); ok {
		r.Reconnect()
		return
	}

	s.logger.Debug().Msg("reconnect requested but source does not support it")
}

// HandleEvent implements transport.Handler. Events arriving after Stop are
// discarded.
func (s *Service) HandleEvent(_ context.Context, event transport.Event) {
	if s.closed.Load() {
		s.logger.Debug().Str("type", event.Type).Msg("discarding event after shutdown")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.applyLocked(event) {
		return
	}

	s.rebuildLocked()
}

// HandleConnectionState implements transport.Handler. State changes
// republish the current view with the new state; the device set is
// untouched.
func (s *Service) HandleConnectionState(state models.ConnectionState) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connState == state {
		return
	}

	s.connState = state
	s.logger.Info().Str("state", string(state)).Msg("connection state changed")

	snap := *s.current.Load()
	snap.ConnectionState = state
	snap.GeneratedAt = time.Now().UTC()

	s.publishLocked(&snap)
}

// applyLocked folds one event into the registry and reports whether the
// device set changed. Malformed payloads are dropped with a debug log;
// they never poison the stream.
func (s *Service) applyLocked(event transport.Event) bool {
	switch event.Type {
	case transport.EventDeviceSighted:
		dev := identity.Normalize(event.Data)
		if dev == nil {
			s.logger.Debug().Msg("dropping sighting without identity")
			return false
		}

		s.stampLastSeen(dev, event.Timestamp)

		return s.store.Merge(dev) != registry.MergeResultNone

	case transport.EventDeviceRemoved:
		key := identity.DeviceID(event.Data)
		if key == "" {
			s.logger.Debug().Msg("dropping removal without identity")
			return false
		}

		return s.store.Remove(key)

	case transport.EventSnapshot:
		devices := identity.SnapshotDevices(event.Data)
		if len(devices) == 0 {
			s.logger.Debug().Msg("snapshot carried no devices")
			return false
		}

		for i := range devices {
			s.stampLastSeen(&devices[i], event.Timestamp)
		}

		created, updated := s.store.ReplaceSnapshot(devices)
		s.logger.Debug().
			Int("created", created).
			Int("updated", updated).
			Msg("applied full snapshot")

		return created+updated > 0

	default:
		s.logger.Debug().Str("type", event.Type).Msg("dropping unknown event type")
		return false
	}
}

// stampLastSeen defaults a sighting's LastSeen to the event timestamp so
// observations without their own timestamp still advance recency.
func (s *Service) stampLastSeen(dev *models.Device, ts time.Time) {
	if dev.LastSeen != nil || ts.IsZero() {
		return
	}

	t := ts.UTC()
	dev.LastSeen = &t
}

// rebuildLocked recomputes the entire derived view from the registry:
// edges, positions and counters are rebuilt from scratch, never patched.
// The result is swapped in atomically and fanned out to subscribers.
func (s *Service) rebuildLocked() {
	devices := s.store.Snapshot()
	edges := topology.Infer(devices)

	snap := &models.Snapshot{
		Devices:         s.engine.Position(devices, edges, s.strategy, s.cfg.Layout.Bounds()),
		Edges:           edges,
		Counters:        s.store.Counters(edges),
		ConnectionState: s.connState,
		LayoutStrategy:  s.strategy,
		GeneratedAt:     time.Now().UTC(),
	}

	s.publishLocked(snap)
}

func (s *Service) publishLocked(snap *models.Snapshot) {
	s.current.Store(snap)
	s.subs.publish(*snap)
}
