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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netatlas/netatlas/pkg/config"
	"github.com/netatlas/netatlas/pkg/models"
)

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.Duration(30*time.Second), cfg.Pull.Interval)
	assert.Equal(t, 5, cfg.Stream.ReconnectMaxAttempts)
	assert.Equal(t, models.Duration(time.Second), cfg.Stream.InitialBackoff)
	assert.Equal(t, models.Duration(30*time.Second), cfg.Stream.MaxBackoff)
	assert.Equal(t, models.LayoutHierarchical, cfg.Layout.Strategy)
	assert.NotNil(t, cfg.Logging)
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Stream: StreamConfig{
			URL:                  "wss://atlas.example.com/stream",
			ReconnectMaxAttempts: 9,
		},
		Pull:   PullConfig{Interval: models.Duration(time.Minute)},
		Layout: LayoutConfig{Strategy: "Clustered", Seed: 7},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9, cfg.Stream.ReconnectMaxAttempts)
	assert.Equal(t, models.Duration(time.Minute), cfg.Pull.Interval)
	assert.Equal(t, models.LayoutClustered, cfg.Layout.Strategy, "strategy labels normalize to lowercase")
}

func TestValidateRejectsBadSchemes(t *testing.T) {
	cfg := &Config{Stream: StreamConfig{URL: "http://atlas.example.com/stream"}}
	require.ErrorIs(t, cfg.Validate(), errInvalidStreamURL)

	cfg = &Config{Pull: PullConfig{URL: "ws://atlas.example.com/snapshot"}}
	require.ErrorIs(t, cfg.Validate(), errInvalidPullURL)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := &Config{Layout: LayoutConfig{Strategy: "orbital"}}

	err := cfg.Validate()
	require.ErrorIs(t, err, errInvalidLayoutStrategy)
	assert.Contains(t, err.Error(), "orbital")
}

func TestLayoutBounds(t *testing.T) {
	l := LayoutConfig{Width: 800, Height: 600}
	assert.Equal(t, models.Bounds{Width: 800, Height: 600}, l.Bounds())

	assert.Zero(t, LayoutConfig{}.Bounds().Width, "zero bounds pass through for the engine to default")
}

func TestConfigLoadsFromEnvironment(t *testing.T) {
	t.Setenv("NETATLAS_STREAM_URL", "wss://atlas.example.com/stream")
	t.Setenv("NETATLAS_STREAM_API_KEY", "sekrit")
	t.Setenv("NETATLAS_STREAM_RECONNECT_MAX_ATTEMPTS", "7")
	t.Setenv("NETATLAS_PULL_URL", "https://atlas.example.com/snapshot")
	t.Setenv("NETATLAS_PULL_INTERVAL", "45s")
	t.Setenv("NETATLAS_NATS_URL", "nats://localhost:4222")
	t.Setenv("NETATLAS_LAYOUT_STRATEGY", "grid")
	t.Setenv("NETATLAS_LAYOUT_SEED", "99")
	t.Setenv("NETATLAS_LAYOUT_WIDTH", "1600")

	cfg := &Config{}
	loader := config.NewConfig(nil)
	require.NoError(t, loader.LoadAndValidate(context.Background(), "", cfg))

	assert.Equal(t, "wss://atlas.example.com/stream", cfg.Stream.URL)
	assert.Equal(t, "sekrit", cfg.Stream.APIKey)
	assert.Equal(t, 7, cfg.Stream.ReconnectMaxAttempts)
	assert.Equal(t, "https://atlas.example.com/snapshot", cfg.Pull.URL)
	assert.Equal(t, models.Duration(45*time.Second), cfg.Pull.Interval)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, models.LayoutGrid, cfg.Layout.Strategy)
	assert.Equal(t, int64(99), cfg.Layout.Seed)
	assert.Equal(t, float64(1600), cfg.Layout.Width)

	// Validation defaults fill whatever the environment left unset.
	assert.Equal(t, models.Duration(30*time.Second), cfg.Stream.MaxBackoff)
}
