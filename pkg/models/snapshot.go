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

package models

import (
	"strings"
	"time"
)

// ConnectionState tracks the push-stream connection lifecycle.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"

	// ConnectionFailed means the reconnect attempt cap was exhausted and
	// the client will stay down until a manual reconnect.
	ConnectionFailed ConnectionState = "failed"
)

// LayoutStrategy selects how devices are placed in the viewport.
type LayoutStrategy string

const (
	LayoutHierarchical LayoutStrategy = "hierarchical"
	LayoutCircular     LayoutStrategy = "circular"
	LayoutGrid         LayoutStrategy = "grid"
	LayoutClustered    LayoutStrategy = "clustered"
)

// ParseLayoutStrategy maps a raw label onto the enumeration. The second
// return reports whether the label named a known strategy.
func ParseLayoutStrategy(raw string) (LayoutStrategy, bool) {
	switch LayoutStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case LayoutHierarchical:
		return LayoutHierarchical, true
	case LayoutCircular:
		return LayoutCircular, true
	case LayoutGrid:
		return LayoutGrid, true
	case LayoutClustered:
		return LayoutClustered, true
	default:
		return "", false
	}
}

// Counters are the aggregate numbers derived from the device and edge
// sets. They are recomputed from scratch after every mutation, never
// patched incrementally.
type Counters struct {
	TotalDevices   int `json:"total_devices"`
	OnlineDevices  int `json:"online_devices"`
	OfflineDevices int `json:"offline_devices"`
	ActiveEdges    int `json:"active_edges"`
}

// Snapshot is the read-only view handed to consumers: the device set with
// layout positions attached, the inferred edge set, derived counters and
// the current connection state. The slices are copies and never alias the
// store's internal records.
type Snapshot struct {
	Devices         []Device        `json:"devices"`
	Edges           []Edge          `json:"edges"`
	Counters        Counters        `json:"counters"`
	ConnectionState ConnectionState `json:"connection_state"`
	LayoutStrategy  LayoutStrategy  `json:"layout_strategy"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
