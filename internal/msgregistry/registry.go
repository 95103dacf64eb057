// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package msgregistry buffers messages that target a future round or
// iteration and replays them once the consensus loop catches up to that
// point (§4.2 "Message registry", Testable Property 5). Grounded on the
// Rust source's MsgRegistry (consensus.rs: `future_msgs.lock().await
// .remove_msgs_by_round(...)`), re-expressed as a single-writer-at-a-time
// Go map guarded by a mutex, per the Design Notes' "borrow by capability,
// not by address" guidance.
package msgregistry

import (
	"sync"

	"succinctattestation/internal/message"
)

// Registry stashes messages keyed by (round, iteration) and hands them
// back out once the loop reaches that key.
type Registry struct {
	mu   sync.Mutex
	byRI map[uint64]map[uint8][]message.Message
}

// New returns an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{byRI: make(map[uint64]map[uint8][]message.Message)}
}

// Put stashes msg for later delivery at (round, iter).
func (r *Registry) Put(round uint64, iter uint8, msg message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byIter, ok := r.byRI[round]
	if !ok {
		byIter = make(map[uint8][]message.Message)
		r.byRI[round] = byIter
	}

	byIter[iter] = append(byIter[iter], msg)
}

// Take removes and returns every message stashed for (round, iter), in
// the order they were stashed.
func (r *Registry) Take(round uint64, iter uint8) []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	byIter, ok := r.byRI[round]
	if !ok {
		return nil
	}

	msgs := byIter[iter]
	delete(byIter, iter)

	if len(byIter) == 0 {
		delete(r.byRI, round)
	}

	return msgs
}

// RemoveRound evicts every message stashed for round. Loop.Spin calls it
// when a round ends, so nothing still pending for that round survives
// into the next one (§4.4 step 1, §3 "discarded" rule).
func (r *Registry) RemoveRound(round uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byRI, round)
}

// Len reports the total number of stashed messages, for tests and
// back-pressure accounting (§5).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, byIter := range r.byRI {
		for _, msgs := range byIter {
			n += len(msgs)
		}
	}

	return n
}
