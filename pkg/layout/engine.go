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

// Package layout assigns 2D positions to devices for rendering. Layouts
// are recomputed from scratch on every call — no incremental physics —
// and any scatter comes from a source re-seeded per call, so a given
// inventory always lands on the same picture.
package layout

import (
	"math/rand"
	"sort"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

const (
	defaultWidth  = 1200
	defaultHeight = 800

	// margin keeps nodes off the viewport edges.
	margin = 20
)

// Engine computes device positions. The seed fixes all cosmetic jitter;
// it never influences which devices or edges exist.
type Engine struct {
	seed   int64
	logger logger.Logger
}

// NewEngine returns an Engine whose scatter is reproducible for the given
// seed.
func NewEngine(seed int64, log logger.Logger) *Engine {
	return &Engine{seed: seed, logger: log}
}

// Position returns copies of the given devices with Position set according
// to the requested strategy. The input slice is never mutated. Unknown
// strategies fall back to the grid layout.
func (e *Engine) Position(devices []models.Device, edges []models.Edge, strategy models.LayoutStrategy, bounds models.Bounds) []models.Device {
	if len(devices) == 0 {
		return nil
	}

	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = models.Bounds{Width: defaultWidth, Height: defaultHeight}
	}

	out := make([]models.Device, 0, len(devices))
	for i := range devices {
		out = append(out, *devices[i].Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey() < out[j].IdentityKey() })

	rng := rand.New(rand.NewSource(e.seed))

	switch strategy {
	case models.LayoutHierarchical:
		hierarchical(out, bounds)
	case models.LayoutCircular:
		circular(out, bounds)
	case models.LayoutClustered:
		clustered(out, bounds, rng)
	case models.LayoutGrid:
		grid(out, bounds)
	default:
		e.logger.Warn().Str("strategy", string(strategy)).Msg("unknown layout strategy, using grid")
		grid(out, bounds)
	}

	for i := range out {
		clampIntoBounds(out[i].Position, bounds)
	}

	return out
}

func clampIntoBounds(pos *models.Position, bounds models.Bounds) {
	if pos == nil {
		return
	}

	pos.X = clampAxis(pos.X, bounds.Width)
	pos.Y = clampAxis(pos.Y, bounds.Height)
}

func clampAxis(v, size float64) float64 {
	lo, hi := float64(margin), size-margin
	if hi < lo {
		return size / 2
	}

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
