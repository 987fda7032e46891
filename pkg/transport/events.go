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

// Package transport feeds the core service from the outside world: a
// long-lived push stream (WebSocket or NATS) plus a periodic full pull.
// Sources decode the shared event envelope and hand everything to a
// Handler; they never interpret device payloads themselves.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netatlas/netatlas/pkg/models"
)

// Push-stream event types. The pull path reuses EventSnapshot for its
// results so both ingestion paths converge before the core service.
const (
	EventDeviceSighted = "device-sighted"
	EventDeviceRemoved = "device-removed"
	EventSnapshot      = "snapshot"
	EventPing          = "ping"
	EventError         = "error"

	// eventSnapshotRequest is sent upstream right after connecting so the
	// source pushes an initial full snapshot.
	eventSnapshotRequest = "snapshot-request"
)

// Event is the wire envelope shared by every source. Data stays raw; the
// identity normalizer owns payload interpretation.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler consumes decoded transport activity. Implementations must be
// safe for concurrent calls: the push pump and the pull loop run on
// separate goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, event Event)
	HandleConnectionState(state models.ConnectionState)
}

// EventSource is a long-lived push producer. Run blocks until the context
// is cancelled or the source is closed.
type EventSource interface {
	Run(ctx context.Context) error
	Close() error
}
