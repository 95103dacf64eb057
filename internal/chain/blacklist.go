// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import "sync"

// Blacklist holds block hashes rejected by a fallback so they are never
// re-accepted by a later, stale message from the same sibling (§4.6).
// Reads dominate writes, so it is RWMutex-guarded per §5's resource
// model for the blacklisted-blocks set.
type Blacklist struct {
	mu  sync.RWMutex
	set map[[32]byte]struct{}
}

// NewBlacklist returns an empty Blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{set: make(map[[32]byte]struct{})}
}

// Add blacklists hash.
func (b *Blacklist) Add(hash [32]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.set[hash] = struct{}{}
}

// Contains reports whether hash is blacklisted.
func (b *Blacklist) Contains(hash [32]byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.set[hash]

	return ok
}

// Clear empties the blacklist. The FSM calls it after every block it
// accepts on the InSync path, and StallDetector.Recover calls it when a
// stall with no identified fork resolves (§4.6). No finality check is
// involved: the chain package does not track finalization.
func (b *Blacklist) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.set = make(map[[32]byte]struct{})
}

// Len reports how many hashes are currently blacklisted.
func (b *Blacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.set)
}
