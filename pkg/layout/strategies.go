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

package layout

import (
	"math"
	"math/rand"

	"github.com/netatlas/netatlas/pkg/models"
	"github.com/netatlas/netatlas/pkg/topology"
)

// hierarchical stacks horizontal bands by role: routers on top, then
// switches, then servers, then everything else. Bands without members
// claim no row.
func hierarchical(devices []models.Device, bounds models.Bounds) {
	bands := make([][]int, 4)

	for i := range devices {
		band := 3

		switch devices[i].Kind {
		case models.KindRouter:
			band = 0
		case models.KindSwitch:
			band = 1
		case models.KindServer:
			band = 2
		case models.KindWorkstation, models.KindUnknown:
		}

		bands[band] = append(bands[band], i)
	}

	var rows [][]int

	for _, band := range bands {
		if len(band) > 0 {
			rows = append(rows, band)
		}
	}

	for r, row := range rows {
		y := bounds.Height * float64(r+1) / float64(len(rows)+1)

		for c, idx := range row {
			x := bounds.Width * float64(c+1) / float64(len(row)+1)
			devices[idx].Position = &models.Position{X: x, Y: y}
		}
	}
}

// circular spaces devices evenly on a ring centred in the viewport,
// starting at twelve o'clock.
func circular(devices []models.Device, bounds models.Bounds) {
	cx, cy := bounds.Width/2, bounds.Height/2
	radius := 0.4 * math.Min(bounds.Width, bounds.Height)

	for i := range devices {
		angle := 2*math.Pi*float64(i)/float64(len(devices)) - math.Pi/2

		devices[i].Position = &models.Position{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
		}
	}
}

// grid fills a near-square grid row-major.
func grid(devices []models.Device, bounds models.Bounds) {
	cols := int(math.Ceil(math.Sqrt(float64(len(devices)))))
	rows := (len(devices) + cols - 1) / cols

	for i := range devices {
		col, row := i%cols, i/cols

		devices[i].Position = &models.Position{
			X: bounds.Width * (float64(col) + 0.5) / float64(cols),
			Y: bounds.Height * (float64(row) + 0.5) / float64(rows),
		}
	}
}

// clustered scatters each subnet around its own anchor zone. Zones sit on
// a ring around the viewport centre; a router-kind member, when present,
// holds the zone centre. Devices without a usable address line up along
// the bottom edge.
func clustered(devices []models.Device, bounds models.Bounds, rng *rand.Rand) {
	groups := topology.GroupBySubnet(devices)

	index := make(map[string]int, len(devices))
	for i := range devices {
		index[devices[i].IdentityKey()] = i
	}

	cx, cy := bounds.Width/2, bounds.Height/2
	ringRadius := 0.32 * math.Min(bounds.Width, bounds.Height)
	zoneRadius := 0.12 * math.Min(bounds.Width, bounds.Height)

	placed := make(map[string]struct{}, len(devices))

	for g, group := range groups {
		angle := 2*math.Pi*float64(g)/float64(len(groups)) - math.Pi/2
		ax := cx + ringRadius*math.Cos(angle)
		ay := cy + ringRadius*math.Sin(angle)

		var anchorKey string

		for _, member := range group.Devices {
			if member.Kind == models.KindRouter {
				anchorKey = member.IdentityKey()
				break
			}
		}

		for _, member := range group.Devices {
			key := member.IdentityKey()
			placed[key] = struct{}{}

			if key == anchorKey {
				devices[index[key]].Position = &models.Position{X: ax, Y: ay}
				continue
			}

			// Scatter inside the zone, keeping a hole around the anchor so
			// members do not sit on top of it.
			r := zoneRadius * (0.35 + 0.65*rng.Float64())
			theta := 2 * math.Pi * rng.Float64()

			devices[index[key]].Position = &models.Position{
				X: ax + r*math.Cos(theta),
				Y: ay + r*math.Sin(theta),
			}
		}
	}

	var strays []int

	for i := range devices {
		if _, ok := placed[devices[i].IdentityKey()]; !ok {
			strays = append(strays, i)
		}
	}

	for n, idx := range strays {
		devices[idx].Position = &models.Position{
			X: bounds.Width * float64(n+1) / float64(len(strays)+1),
			Y: bounds.Height - 2*margin,
		}
	}
}
