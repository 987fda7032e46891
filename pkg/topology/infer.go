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

// Package topology infers link structure from device addressing. The
// inventory never reports connectivity directly, so the edges here are a
// heuristic reconstruction: subnet peers hang off an elected gateway,
// small gateway-less subnets mesh, gateways of different subnets chain
// into a backbone. Inference is a pure function of the device set —
// no randomness ever decides whether an edge exists.
package topology

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/netatlas/netatlas/pkg/models"
)

// meshLimit bounds full-mesh emission for gateway-less subnets. Larger
// groups are topologically ambiguous and receive no edges rather than a
// quadratic guess.
const meshLimit = 4

// Link capacities in Mbps by device kind; an edge carries the minimum of
// its two endpoint capacities.
const (
	capacityInfrastructure = 1000
	capacityHost           = 100
	capacityUnknown        = 10
)

// Infer derives the edge set for the given devices. Deterministic: the
// same device set yields the same edges in the same order regardless of
// input ordering.
func Infer(devices []models.Device) []models.Edge {
	groups := GroupBySubnet(devices)

	edges := make([]models.Edge, 0, len(devices))
	emitted := make(map[string]struct{})

	// Elected gateways in group-key order, for backbone chaining.
	var gateways []models.Device

	for _, group := range groups {
		if len(group.Devices) < 2 {
			continue
		}

		gateway, found := electGateway(group.Devices)
		if found {
			gateways = append(gateways, gateway)

			for _, member := range group.Devices {
				if member.IdentityKey() == gateway.IdentityKey() {
					continue
				}

				edges = appendEdge(edges, emitted, member, gateway, models.LinkGateway)
			}

			continue
		}

		if len(group.Devices) <= meshLimit {
			for i := 0; i < len(group.Devices); i++ {
				for j := i + 1; j < len(group.Devices); j++ {
					edges = appendEdge(edges, emitted, group.Devices[i], group.Devices[j], models.LinkMesh)
				}
			}
		}
	}

	for i := 0; i+1 < len(gateways); i++ {
		edges = appendEdge(edges, emitted, gateways[i], gateways[i+1], models.LinkBackbone)
	}

	return edges
}

// electGateway picks the subnet gateway: any router-kind device first,
// then any device on a .1 or .254 address. Members arrive sorted by
// address, so the first hit is the lexicographically smallest candidate
// and the election is reproducible.
func electGateway(members []models.Device) (models.Device, bool) {
	for _, member := range members {
		if member.Kind == models.KindRouter {
			return member, true
		}
	}

	for _, member := range members {
		if octet := lastOctet(member.Address); octet == 1 || octet == 254 {
			return member, true
		}
	}

	return models.Device{}, false
}

// EdgeID builds the undirected edge identifier from the two endpoint
// identity keys. The pair is sorted before hashing, so both orderings
// produce the same id.
func EdgeID(a, b string) string {
	if a > b {
		a, b = b, a
	}

	sum := sha256.Sum256([]byte(a + "|" + b))

	return fmt.Sprintf("%x", sum[:8])
}

func appendEdge(edges []models.Edge, emitted map[string]struct{}, source, target models.Device, linkType models.LinkType) []models.Edge {
	id := EdgeID(source.IdentityKey(), target.IdentityKey())

	if _, dup := emitted[id]; dup {
		return edges
	}

	emitted[id] = struct{}{}

	status := models.EdgeInactive
	if source.Status == models.StatusOnline && target.Status == models.StatusOnline {
		status = models.EdgeActive
	}

	latency, utilization := simulatedLink(id)

	return append(edges, models.Edge{
		ID:          id,
		Source:      source.IdentityKey(),
		Target:      target.IdentityKey(),
		LinkType:    linkType,
		Bandwidth:   minCapacity(source.Kind, target.Kind),
		LatencyMS:   latency,
		Utilization: utilization,
		Status:      status,
	})
}

func minCapacity(a, b models.DeviceKind) int {
	ca, cb := linkCapacity(a), linkCapacity(b)
	if cb < ca {
		return cb
	}

	return ca
}

func linkCapacity(kind models.DeviceKind) int {
	switch kind {
	case models.KindRouter, models.KindSwitch:
		return capacityInfrastructure
	case models.KindServer, models.KindWorkstation:
		return capacityHost
	default:
		return capacityUnknown
	}
}

// simulatedLink derives latency and utilization from the edge id. The
// inventory has no real measurements for these, but hashing the id keeps
// repeated inference over the same devices from jittering the numbers.
func simulatedLink(id string) (latencyMS, utilization float64) {
	sum := sha256.Sum256([]byte(id))

	latencyMS = 1 + float64(binary.BigEndian.Uint16(sum[0:2]))/65535*19
	utilization = float64(binary.BigEndian.Uint16(sum[2:4])) / 65535

	return latencyMS, utilization
}
