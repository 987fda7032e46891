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

package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

// subscriberHub fans published snapshots out to registered consumers. Each
// subscription owns a buffered channel of one: the pending slot always
// holds the newest snapshot, so a consumer that falls behind skips
// intermediate states instead of stalling the publisher.
type subscriberHub struct {
	mu     sync.RWMutex
	subs   map[string]chan models.Snapshot
	logger logger.Logger
}

func newSubscriberHub(log logger.Logger) *subscriberHub {
	return &subscriberHub{
		subs:   make(map[string]chan models.Snapshot),
		logger: log,
	}
}

func (h *subscriberHub) subscribe() (string, <-chan models.Snapshot) {
	id := uuid.NewString()
	ch := make(chan models.Snapshot, 1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Debug().Str("subscription_id", id).Msg("subscriber registered")

	return id, ch
}

func (h *subscriberHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return
	}

	delete(h.subs, id)
	close(ch)
}

// publish delivers snap to every subscriber without ever blocking. A full
// pending slot is drained first so the consumer's next receive sees the
// newest snapshot, not a stale one.
func (h *subscriberHub) publish(snap models.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- snap:
			continue
		default:
		}

		select {
		case <-ch:
		default:
		}

		select {
		case ch <- snap:
		default:
		}
	}
}

func (h *subscriberHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *subscriberHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}
