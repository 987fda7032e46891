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
	"sync"
	"sync/atomic"
	"time"

	"github.com/netatlas/netatlas/pkg/logger"
)

const defaultPullInterval = 30 * time.Second

// Puller fetches full snapshots on a fixed interval, independent of the
// push stream's health. Results are delivered to the Handler as snapshot
// events, so the pull path merges through the same code as pushed
// snapshots and never deletes anything.
type Puller struct {
	fetcher  SnapshotFetcher
	handler  Handler
	interval time.Duration
	clock    Clock
	logger   logger.Logger

	triggerCh chan struct{}
	inFlight  atomic.Bool
	wg        sync.WaitGroup
}

// NewPuller builds a puller; a nil clock selects real time and a
// non-positive interval selects the 30s default.
func NewPuller(fetcher SnapshotFetcher, handler Handler, interval time.Duration, clock Clock, log logger.Logger) *Puller {
	if clock == nil {
		clock = realClock{}
	}

	if interval <= 0 {
		interval = defaultPullInterval
	}

	return &Puller{
		fetcher:   fetcher,
		handler:   handler,
		interval:  interval,
		clock:     clock,
		logger:    log.WithComponent("puller"),
		triggerCh: make(chan struct{}, 1),
	}
}

// Run pulls once immediately (the initial load), then on every tick until
// the context is cancelled. It waits for any in-flight pull before
// returning.
func (p *Puller) Run(ctx context.Context) error {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.logger.Info().Dur("interval", p.interval).Msg("starting snapshot puller")

	p.startPull(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.startPull(ctx)
		case <-p.triggerCh:
			p.startPull(ctx)
		}
	}
}

// TriggerNow requests an immediate out-of-band pull. Subject to the same
// in-flight guard as timer ticks: dropped, not queued, while a pull is
// outstanding.
func (p *Puller) TriggerNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// startPull launches one pull unless another is still in flight.
func (p *Puller) startPull(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug().Msg("pull already in flight, skipping")
		return
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		p.pull(ctx)
	}()
}

func (p *Puller) pull(ctx context.Context) {
	payload, err := p.fetcher.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		p.logger.Warn().Err(err).Msg("snapshot pull failed")

		return
	}

	// A result that lands after teardown is discarded, not applied.
	if ctx.Err() != nil {
		return
	}

	p.handler.HandleEvent(ctx, Event{
		Type:      EventSnapshot,
		Data:      payload,
		Timestamp: p.clock.Now().UTC(),
	})
}
