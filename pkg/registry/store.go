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

// Package registry holds the deduplicated in-memory device inventory.
// Records are keyed by identity key (id when known, address otherwise)
// with a secondary address index so sightings from sources that disagree
// about identifiers still fold onto one record.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

// MergeResult describes the effect of a Merge call.
type MergeResult string

const (
	// MergeResultNone means the record carried no resolvable identity and
	// was discarded.
	MergeResultNone MergeResult = "none"
	// MergeResultCreated means a new record was inserted.
	MergeResultCreated MergeResult = "created"
	// MergeResultUpdated means an existing record absorbed the sighting.
	MergeResultUpdated MergeResult = "updated"
)

// Store is the authoritative device inventory. All methods are safe for
// concurrent use; mutation ordering across merge/inference/layout is the
// caller's concern.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*models.Device
	// byAddress buckets identity keys per address. Two records may share
	// an address transiently, e.g. after an id-matched update moves a
	// record onto an address another record still holds.
	byAddress map[string]map[string]struct{}
	logger    logger.Logger
	now       func() time.Time
}

// NewStore returns an empty Store.
func NewStore(log logger.Logger) *Store {
	return &Store{
		devices:   make(map[string]*models.Device),
		byAddress: make(map[string]map[string]struct{}),
		logger:    log,
		now:       time.Now,
	}
}

// Merge folds one normalized sighting into the inventory. Matching is by
// id first, then by address. Matched records are updated in place,
// last-writer-wins per field, where only non-empty incoming fields are
// applied: partial sightings never erase known data. A sighting that
// brings an id to a record previously known only by address re-keys that
// record instead of creating a duplicate.
func (s *Store) Merge(incoming *models.Device) MergeResult {
	if incoming == nil || incoming.IdentityKey() == "" {
		return MergeResultNone
	}

	input := incoming.Clone()
	// Layout positions live on published snapshots, never in the store.
	input.Position = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID != "" {
		if existing, ok := s.devices[input.ID]; ok {
			s.updateLocked(existing, input.ID, input)
			return MergeResultUpdated
		}
	}

	if input.Address != "" {
		if key, existing := s.matchByAddressLocked(input.Address); existing != nil {
			s.updateLocked(existing, key, input)
			return MergeResultUpdated
		}
	}

	s.insertLocked(input)

	return MergeResultCreated
}

// Remove deletes the record stored under the given identity key. Returns
// whether a record existed.
func (s *Store) Remove(key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.devices[key]
	if !ok {
		return false
	}

	s.unindexAddressLocked(existing.Address, key)
	delete(s.devices, key)

	return true
}

// ReplaceSnapshot merges every device from a full pull. Despite the name
// it never deletes: devices missing from one snapshot may simply not have
// answered this pull, and the push stream remains the only source of
// explicit removals.
func (s *Store) ReplaceSnapshot(devices []models.Device) (created, updated int) {
	for i := range devices {
		switch s.Merge(&devices[i]) {
		case MergeResultCreated:
			created++
		case MergeResultUpdated:
			updated++
		case MergeResultNone:
		}
	}

	return created, updated
}

// Counters recomputes the summary counters from the live device set and
// the supplied edge set. Always a fresh walk, never cached, so it cannot
// drift from the inventory.
func (s *Store) Counters(edges []models.Edge) models.Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counters := models.Counters{TotalDevices: len(s.devices)}

	for _, dev := range s.devices {
		switch dev.Status {
		case models.StatusOnline:
			counters.OnlineDevices++
		case models.StatusOffline:
			counters.OfflineDevices++
		case models.StatusUnknown:
		}
	}

	for i := range edges {
		if edges[i].Status == models.EdgeActive {
			counters.ActiveEdges++
		}
	}

	return counters
}

// Snapshot returns deep copies of every record, sorted by identity key so
// downstream consumers iterate deterministically.
func (s *Store) Snapshot() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.devices))
	for key := range s.devices {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	out := make([]models.Device, 0, len(keys))
	for _, key := range keys {
		out = append(out, *s.devices[key].Clone())
	}

	return out
}

// Get returns a copy of the record stored under the given identity key.
func (s *Store) Get(key string) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.devices[key]
	if !ok {
		return models.Device{}, false
	}

	return *existing.Clone(), true
}

// Len reports the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.devices)
}

// matchByAddressLocked picks the merge target among records sharing an
// address. A record known only by address wins (it is the one an id-bearing
// sighting should complete); otherwise the lexicographically smallest key
// wins so the choice is deterministic.
func (s *Store) matchByAddressLocked(address string) (string, *models.Device) {
	bucket, ok := s.byAddress[address]
	if !ok {
		return "", nil
	}

	var bestKey string

	for key := range bucket {
		rec := s.devices[key]
		if rec == nil {
			continue
		}

		if rec.ID == "" {
			return key, rec
		}

		if bestKey == "" || key < bestKey {
			bestKey = key
		}
	}

	if bestKey == "" {
		return "", nil
	}

	return bestKey, s.devices[bestKey]
}

func (s *Store) insertLocked(input *models.Device) {
	if input.FirstSeen == nil {
		firstSeen := s.now().UTC()
		if input.LastSeen != nil {
			firstSeen = *input.LastSeen
		}

		input.FirstSeen = &firstSeen
	}

	key := input.IdentityKey()
	s.devices[key] = input
	s.indexAddressLocked(input.Address, key)
}

// updateLocked folds input into existing (stored under key), re-keying and
// re-indexing as identity fields change.
func (s *Store) updateLocked(existing *models.Device, key string, input *models.Device) {
	if input.ID != "" && input.ID != existing.ID {
		// The sighting brings (or corrects) the id for a record matched by
		// address. Fold onto the existing record under the new key.
		s.logger.Debug().
			Str("address", existing.Address).
			Str("old_key", key).
			Str("new_key", input.ID).
			Msg("re-keying device record")

		delete(s.devices, key)
		s.unindexAddressLocked(existing.Address, key)

		existing.ID = input.ID
		key = input.ID
		s.devices[key] = existing
		s.indexAddressLocked(existing.Address, key)
	}

	if input.Address != "" && input.Address != existing.Address {
		s.unindexAddressLocked(existing.Address, key)
		existing.Address = input.Address
		s.indexAddressLocked(existing.Address, key)
	}

	if input.DisplayName != "" {
		existing.DisplayName = input.DisplayName
	}

	if input.Kind != "" {
		existing.Kind = input.Kind
	}

	if input.Status != "" {
		existing.Status = input.Status
	}

	if input.LastSeen != nil && (existing.LastSeen == nil || input.LastSeen.After(*existing.LastSeen)) {
		lastSeen := *input.LastSeen
		existing.LastSeen = &lastSeen
	}

	if existing.FirstSeen == nil && input.FirstSeen != nil {
		firstSeen := *input.FirstSeen
		existing.FirstSeen = &firstSeen
	}

	if len(input.Metrics) > 0 {
		if existing.Metrics == nil {
			existing.Metrics = make(map[string]interface{}, len(input.Metrics))
		}

		for k, v := range input.Metrics {
			existing.Metrics[k] = v
		}
	}
}

func (s *Store) indexAddressLocked(address, key string) {
	if address == "" {
		return
	}

	bucket := s.byAddress[address]
	if bucket == nil {
		bucket = make(map[string]struct{})
		s.byAddress[address] = bucket
	}

	bucket[key] = struct{}{}
}

func (s *Store) unindexAddressLocked(address, key string) {
	if address == "" {
		return
	}

	if bucket, ok := s.byAddress[address]; ok {
		delete(bucket, key)

		if len(bucket) == 0 {
			delete(s.byAddress, address)
		}
	}
}
