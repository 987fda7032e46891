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

package topology

import (
	"fmt"
	"net"
	"sort"

	"github.com/netatlas/netatlas/pkg/models"
)

// SubnetGroup is the set of devices sharing the first three address
// octets. The grouping is a /24 heuristic, not CIDR-aware: the inventory
// carries bare addresses, not prefixes.
type SubnetGroup struct {
	Key     string
	Devices []models.Device
}

// GroupBySubnet partitions devices by subnet key. Devices without a
// well-formed IPv4 address are left out: they cannot participate in
// subnet-based inference. Groups are sorted by key and members are sorted
// by address then identity key, so the result is independent of input
// order.
func GroupBySubnet(devices []models.Device) []SubnetGroup {
	buckets := make(map[string][]models.Device)

	for i := range devices {
		key, ok := subnetKey(devices[i].Address)
		if !ok {
			continue
		}

		buckets[key] = append(buckets[key], devices[i])
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	groups := make([]SubnetGroup, 0, len(keys))

	for _, key := range keys {
		members := buckets[key]
		sort.Slice(members, func(i, j int) bool {
			if members[i].Address != members[j].Address {
				return members[i].Address < members[j].Address
			}

			return members[i].IdentityKey() < members[j].IdentityKey()
		})

		groups = append(groups, SubnetGroup{Key: key, Devices: members})
	}

	return groups
}

func subnetKey(address string) (string, bool) {
	ip := net.ParseIP(address)
	if ip == nil {
		return "", false
	}

	v4 := ip.To4()
	if v4 == nil {
		return "", false
	}

	return fmt.Sprintf("%d.%d.%d", v4[0], v4[1], v4[2]), true
}

// lastOctet returns the final IPv4 octet, or -1 when the address is not a
// well-formed IPv4 address.
func lastOctet(address string) int {
	ip := net.ParseIP(address)
	if ip == nil {
		return -1
	}

	v4 := ip.To4()
	if v4 == nil {
		return -1
	}

	return int(v4[3])
}
