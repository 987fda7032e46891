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

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/netatlas/netatlas/pkg/logger"
)

const defaultFetchTimeout = 15 * time.Second

// errSnapshotStatus flags a non-200 snapshot response.
var errSnapshotStatus = errors.New("unexpected snapshot response status")

// SnapshotFetcher fetches one full inventory snapshot. The payload stays
// raw: response shape is the identity normalizer's concern.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (json.RawMessage, error)
}

// HTTPSnapshotFetcher pulls snapshots from the inventory REST endpoint.
type HTTPSnapshotFetcher struct {
	url    string
	apiKey string
	client *http.Client
	logger logger.Logger
}

// NewHTTPSnapshotFetcher builds a fetcher for the given endpoint. The
// API key is optional.
func NewHTTPSnapshotFetcher(url, apiKey string, log logger.Logger) *HTTPSnapshotFetcher {
	return &HTTPSnapshotFetcher{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: defaultFetchTimeout},
		logger: log.WithComponent("snapshot-fetcher"),
	}
}

// FetchSnapshot performs one GET against the snapshot endpoint and returns
// the body untouched.
func (f *HTTPSnapshotFetcher) FetchSnapshot(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if f.apiKey != "" {
		req.Header.Set("X-API-Key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", errSnapshotStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot body: %w", err)
	}

	f.logger.Debug().Int("bytes", len(body)).Msg("fetched snapshot")

	return body, nil
}
