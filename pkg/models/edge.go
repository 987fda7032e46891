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

// LinkType classifies an inferred connection between two devices.
type LinkType string

const (
	LinkGateway        LinkType = "gateway"
	LinkMesh           LinkType = "mesh"
	LinkBackbone       LinkType = "backbone"
	LinkInfrastructure LinkType = "infrastructure"
	LinkAccess         LinkType = "access"
)

// EdgeStatus marks whether a connection is considered live. An edge is
// active only while both endpoints are online.
type EdgeStatus string

const (
	EdgeActive   EdgeStatus = "active"
	EdgeInactive EdgeStatus = "inactive"
)

// Edge is one inferred, undirected connection between two identity keys.
// ID derives from the lexicographically ordered key pair, so (a,b) and
// (b,a) are the same edge no matter which endpoint is the Source.
//
// Bandwidth, LatencyMS and Utilization are synthetic: derived from device
// kinds and the edge id for visualization, never measured on the wire.
type Edge struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	LinkType    LinkType   `json:"link_type"`
	Bandwidth   int        `json:"bandwidth_mbps"`
	LatencyMS   float64    `json:"latency_ms"`
	Utilization float64    `json:"utilization"`
	Status      EdgeStatus `json:"status"`
}
