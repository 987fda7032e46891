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

// Package models defines the canonical records shared across netatlas:
// devices, inferred edges, aggregate counters and the consumer snapshot.
package models

import (
	"strings"
	"time"
)

// DeviceKind classifies a device by its role on the network.
type DeviceKind string

const (
	KindRouter      DeviceKind = "router"
	KindSwitch      DeviceKind = "switch"
	KindServer      DeviceKind = "server"
	KindWorkstation DeviceKind = "workstation"
	KindUnknown     DeviceKind = "unknown"
)

// ParseDeviceKind maps a raw kind label onto the enumeration. Matching is
// case-insensitive; anything unrecognized becomes KindUnknown.
func ParseDeviceKind(raw string) DeviceKind {
	switch DeviceKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindRouter:
		return KindRouter
	case KindSwitch:
		return KindSwitch
	case KindServer:
		return KindServer
	case KindWorkstation:
		return KindWorkstation
	default:
		return KindUnknown
	}
}

// DeviceStatus is the reachability state last reported for a device.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusUnknown DeviceStatus = "unknown"
)

// ParseDeviceStatus maps raw status labels onto the enumeration. The wire
// aliases "up" and "down" are accepted; anything else unrecognized becomes
// StatusUnknown.
func ParseDeviceStatus(raw string) DeviceStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "online":
		return StatusOnline
	case "down", "offline":
		return StatusOffline
	default:
		return StatusUnknown
	}
}

// Position is a 2-D layout coordinate inside the viewport.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the viewport rectangle layout strategies place devices into.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Device is the canonical record for one network device, merged from every
// event source that has sighted it.
//
// The zero value of Kind and Status means "not reported by this sighting"
// and is distinct from KindUnknown/StatusUnknown: merges treat the zero
// value as absent so a partial update can never erase a known value.
// Position is owned by the layout engine and only appears on published
// snapshot copies, never on stored records.
type Device struct {
	ID          string                 `json:"id,omitempty"`
	Address     string                 `json:"address,omitempty"`
	DisplayName string                 `json:"display_name,omitempty"`
	Kind        DeviceKind             `json:"kind,omitempty"`
	Status      DeviceStatus           `json:"status,omitempty"`
	FirstSeen   *time.Time             `json:"first_seen,omitempty"`
	LastSeen    *time.Time             `json:"last_seen,omitempty"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
	Position    *Position              `json:"position,omitempty"`
}

// IdentityKey returns the key the device is tracked under: the stable ID
// when present, the network address otherwise. Only records carrying
// neither produce an empty key, and the normalizer never emits those.
func (d *Device) IdentityKey() string {
	if d.ID != "" {
		return d.ID
	}

	return d.Address
}

// Clone returns a deep copy that shares no mutable state with the
// original.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	out := *d

	if d.FirstSeen != nil {
		t := *d.FirstSeen
		out.FirstSeen = &t
	}

	if d.LastSeen != nil {
		t := *d.LastSeen
		out.LastSeen = &t
	}

	if d.Metrics != nil {
		out.Metrics = make(map[string]interface{}, len(d.Metrics))
		for k, v := range d.Metrics {
			out.Metrics[k] = v
		}
	}

	if d.Position != nil {
		p := *d.Position
		out.Position = &p
	}

	return &out
}
