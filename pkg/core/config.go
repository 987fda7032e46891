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
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

const (
	defaultPullInterval   = 30 * time.Second
	defaultMaxAttempts    = 5
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second

	defaultLayoutStrategy = models.LayoutHierarchical
)

var (
	errInvalidStreamURL      = errors.New("stream URL must use the ws or wss scheme")
	errInvalidPullURL        = errors.New("pull URL must use the http or https scheme")
	errInvalidLayoutStrategy = errors.New("unknown layout strategy")
)

// Config is the root configuration for the core service. It loads from a
// JSON file or from NETATLAS_-prefixed environment variables (for example
// NETATLAS_STREAM_URL, NETATLAS_PULL_INTERVAL), with env vars winning.
type Config struct {
	Stream  StreamConfig   `json:"stream"`
	Pull    PullConfig     `json:"pull"`
	NATS    NATSConfig     `json:"nats"`
	Layout  LayoutConfig   `json:"layout"`
	Logging *logger.Config `json:"logging,omitempty"`
}

// StreamConfig configures the websocket push stream.
type StreamConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`

	// ReconnectMaxAttempts caps automatic redials before the client parks
	// in the failed state and waits for a manual reconnect.
	ReconnectMaxAttempts int             `json:"reconnect_max_attempts"`
	InitialBackoff       models.Duration `json:"initial_backoff"`
	MaxBackoff           models.Duration `json:"max_backoff"`
}

// PullConfig configures the periodic full-snapshot pull.
type PullConfig struct {
	URL      string          `json:"url"`
	APIKey   string          `json:"api_key"`
	Interval models.Duration `json:"interval"`
}

// NATSConfig configures the alternative NATS event source, used when the
// observations arrive over a broker instead of a websocket.
type NATSConfig struct {
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix"`
}

// LayoutConfig selects the layout strategy, viewport and jitter seed.
type LayoutConfig struct {
	Strategy models.LayoutStrategy `json:"strategy"`
	Seed     int64                 `json:"seed"`
	Width    float64               `json:"width"`
	Height   float64               `json:"height"`
}

// Bounds returns the configured viewport. Zero dimensions are legal; the
// layout engine substitutes its defaults.
func (l LayoutConfig) Bounds() models.Bounds {
	return models.Bounds{Width: l.Width, Height: l.Height}
}

// Validate checks the configured values and fills in defaults. It does not
// require any source to be configured: which sources must be present
// depends on how the service is assembled, so NewService enforces that.
func (c *Config) Validate() error {
	if c.Stream.URL != "" {
		if err := checkScheme(c.Stream.URL, errInvalidStreamURL, "ws", "wss"); err != nil {
			return err
		}
	}

	if c.Pull.URL != "" {
		if err := checkScheme(c.Pull.URL, errInvalidPullURL, "http", "https"); err != nil {
			return err
		}
	}

	if c.Stream.ReconnectMaxAttempts <= 0 {
		c.Stream.ReconnectMaxAttempts = defaultMaxAttempts
	}

	if c.Stream.InitialBackoff <= 0 {
		c.Stream.InitialBackoff = models.Duration(defaultInitialBackoff)
	}

	if c.Stream.MaxBackoff <= 0 {
		c.Stream.MaxBackoff = models.Duration(defaultMaxBackoff)
	}

	if c.Pull.Interval <= 0 {
		c.Pull.Interval = models.Duration(defaultPullInterval)
	}

	if c.Layout.Strategy == "" {
		c.Layout.Strategy = defaultLayoutStrategy
	} else {
		strategy, ok := models.ParseLayoutStrategy(string(c.Layout.Strategy))
		if !ok {
			return fmt.Errorf("%w: %q", errInvalidLayoutStrategy, c.Layout.Strategy)
		}

		c.Layout.Strategy = strategy
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	return nil
}

func checkScheme(raw string, sentinel error, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", sentinel, raw)
	}

	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}

	return fmt.Errorf("%w: %q", sentinel, raw)
}
