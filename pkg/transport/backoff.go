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

import "time"

const (
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Backoff computes the bounded exponential wait schedule between dial
// attempts: Initial, doubling per attempt, capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Wait returns the pause before retry number attempt (zero-based).
func (b Backoff) Wait(attempt int) time.Duration {
	initial, ceiling := b.Initial, b.Max
	if initial <= 0 {
		initial = defaultInitialBackoff
	}

	if ceiling <= 0 {
		ceiling = defaultMaxBackoff
	}

	wait := initial

	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= ceiling {
			return ceiling
		}
	}

	if wait > ceiling {
		return ceiling
	}

	return wait
}
