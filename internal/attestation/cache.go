// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package attestation

import (
	"sync"
	"time"

	"succinctattestation/internal/block"
	"succinctattestation/internal/config"
)

// Cache holds attestations that arrived (via a Quorum message) before
// their candidate block did (§3 "Attestation cache", §4.8). Grounded on
// node/src/chain/fsm.rs's `attestations_cache: HashMap<hash, (att,
// Instant)>`, which prunes expired entries opportunistically on every
// access rather than on a separate ticker — this keeps that behavior.
//
// Open question from §9 ("unbounded between expiries") is resolved here
// by capping live entries at maxSize (4096): while the cache is full,
// Insert drops attestations for new hashes and only refreshes existing
// ones.
type Cache struct {
	mu      sync.Mutex
	entries map[[32]byte]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	maxSize int
}

type cacheEntry struct {
	att    block.Attestation
	expiry time.Time
}

// NewCache returns a Cache using the protocol's default TTL.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[[32]byte]cacheEntry),
		now:     time.Now,
		ttl:     config.AttestationCacheTTL,
		maxSize: 4096,
	}
}

// Insert records att for hash, refreshing its expiry if already present
// (Testable Property 10: idempotent, one entry, refreshed expiry).
func (c *Cache) Insert(hash [32]byte, att block.Attestation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	if len(c.entries) >= c.maxSize {
		if _, exists := c.entries[hash]; !exists {
			return
		}
	}

	c.entries[hash] = cacheEntry{att: att, expiry: c.now().Add(c.ttl)}
}

// Get returns the cached attestation for hash, if present and unexpired.
// The lookup itself prunes expired entries first, matching the original
// "clean up on every access" behavior.
func (c *Cache) Get(hash [32]byte) (block.Attestation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	e, ok := c.entries[hash]
	if !ok {
		return block.Attestation{}, false
	}

	return e.att, true
}

// Remove deletes hash's entry, called once its attestation has been
// attached to an arriving candidate (§4.8).
func (c *Cache) Remove(hash [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, hash)
}

// Len reports the number of live (unexpired) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	return len(c.entries)
}

func (c *Cache) pruneLocked() {
	now := c.now()

	for h, e := range c.entries {
		if e.expiry.Before(now) {
			delete(c.entries, h)
		}
	}
}
