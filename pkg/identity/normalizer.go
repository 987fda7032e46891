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

// Package identity converts the heterogeneous event payloads produced by
// the discovery collaborators into canonical device records. Every
// function here is total: malformed input yields nil (or a zero value),
// never an error and never a panic, because the transport layer cannot
// assume a per-event error-handling strategy.
package identity

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/netatlas/netatlas/pkg/models"
)

// Known field aliases across event sources. Order matters: the first
// present, non-empty alias wins.
var (
	addressAliases = []string{"ip", "ipAddress", "ip_address", "address"}
	idAliases      = []string{"id", "_id", "deviceId", "device_id"}
	nameAliases    = []string{"name", "hostname", "displayName", "label"}
	kindAliases    = []string{"kind", "type", "deviceType"}
	statusAliases  = []string{"status", "state"}
	seenAliases    = []string{"lastSeen", "last_seen", "timestamp"}
)

// epochMillisThreshold separates second from millisecond epochs: numeric
// timestamps at or above it are read as milliseconds.
const epochMillisThreshold = 1e12

// Normalize converts one raw device-sighted payload into a canonical
// device record. It unwraps a single level of "device" nesting, resolves
// the address and id aliases, and maps status/kind labels onto the
// enumerations. It returns nil when the payload is not a JSON object or
// when neither an address nor an id can be resolved — the signal for
// "not a device event". Unknown fields are ignored.
func Normalize(raw json.RawMessage) *models.Device {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	return NormalizeFields(fields)
}

// NormalizeFields is Normalize for payloads already decoded into a map.
func NormalizeFields(fields map[string]interface{}) *models.Device {
	if fields == nil {
		return nil
	}

	if nested, ok := fields["device"].(map[string]interface{}); ok {
		fields = nested
	}

	address := firstString(fields, addressAliases)
	id := firstScalar(fields, idAliases)

	if address == "" && id == "" {
		return nil
	}

	dev := &models.Device{
		ID:          id,
		Address:     address,
		DisplayName: firstString(fields, nameAliases),
	}

	// Status and kind stay at their zero values when the payload carries
	// no such field, so a later merge cannot erase a known value with
	// "unknown". Present-but-unrecognized values do map to unknown.
	if raw, ok := firstPresent(fields, statusAliases); ok {
		dev.Status = statusFromValue(raw)
	}

	if raw, ok := firstPresent(fields, kindAliases); ok {
		dev.Kind = kindFromValue(raw)
	}

	if raw, ok := firstPresent(fields, seenAliases); ok {
		if ts := timeFromValue(raw); ts != nil {
			dev.LastSeen = ts
		}
	}

	dev.Metrics = metricsFromFields(fields)

	return dev
}

// DeviceID resolves the id aliases from a device-removed payload. Returns
// "" when no id is present.
func DeviceID(raw json.RawMessage) string {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}

	if nested, ok := fields["device"].(map[string]interface{}); ok {
		fields = nested
	}

	return firstScalar(fields, idAliases)
}

// SnapshotDevices decodes a pull/snapshot payload — either
// {"devices": [...]} or a bare JSON array — and normalizes every element,
// dropping the ones that resolve to no identity.
func SnapshotDevices(raw json.RawMessage) []models.Device {
	var wrapped struct {
		Devices []json.RawMessage `json:"devices"`
	}

	var elements []json.RawMessage

	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Devices != nil {
		elements = wrapped.Devices
	} else if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}

	devices := make([]models.Device, 0, len(elements))

	for _, element := range elements {
		if dev := Normalize(element); dev != nil {
			devices = append(devices, *dev)
		}
	}

	return devices
}

func firstPresent(fields map[string]interface{}, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		if value, ok := fields[alias]; ok {
			return value, true
		}
	}

	return nil, false
}

// firstString returns the first alias holding a non-empty string.
func firstString(fields map[string]interface{}, aliases []string) string {
	for _, alias := range aliases {
		if value, ok := fields[alias].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}

// firstScalar resolves string or numeric identifiers: some sources report
// integer ids, which render to their literal decimal form.
func firstScalar(fields map[string]interface{}, aliases []string) string {
	for _, alias := range aliases {
		switch value := fields[alias].(type) {
		case string:
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(value, 'f', -1, 64)
		case json.Number:
			return value.String()
		}
	}

	return ""
}

func statusFromValue(value interface{}) models.DeviceStatus {
	s, ok := value.(string)
	if !ok {
		return models.StatusUnknown
	}

	return models.ParseDeviceStatus(s)
}

func kindFromValue(value interface{}) models.DeviceKind {
	s, ok := value.(string)
	if !ok {
		return models.KindUnknown
	}

	return models.ParseDeviceKind(s)
}

// timeFromValue parses RFC 3339 strings and numeric epochs. Nil when the
// value is unusable; sightings without a parseable timestamp simply carry
// no LastSeen.
func timeFromValue(value interface{}) *time.Time {
	switch v := value.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, v); err == nil {
				utc := parsed.UTC()
				return &utc
			}
		}

		return nil
	case float64:
		if v <= 0 {
			return nil
		}

		var parsed time.Time
		if v >= epochMillisThreshold {
			parsed = time.UnixMilli(int64(v)).UTC()
		} else {
			parsed = time.Unix(int64(v), 0).UTC()
		}

		return &parsed
	default:
		return nil
	}
}

// metricsFromFields collects the opaque metrics bag, folding the commonly
// top-level responseTime into it.
func metricsFromFields(fields map[string]interface{}) map[string]interface{} {
	var metrics map[string]interface{}

	if bag, ok := fields["metrics"].(map[string]interface{}); ok && len(bag) > 0 {
		metrics = make(map[string]interface{}, len(bag))
		for k, v := range bag {
			metrics[k] = v
		}
	}

	for _, alias := range []string{"responseTime", "response_time"} {
		if rt, ok := fields[alias].(float64); ok {
			if metrics == nil {
				metrics = make(map[string]interface{}, 1)
			}

			metrics["responseTime"] = rt

			break
		}
	}

	return metrics
}
