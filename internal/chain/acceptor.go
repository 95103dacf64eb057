// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package chain implements the chain-synchronization finite-state
// machine of §4.6-§4.8: accepting blocks, detecting forks, falling back
// to a lower-iteration sibling, driving presync/out-of-sync block
// range requests, the stalled-chain sub-FSM, and quorum-message
// ingress. Grounded on the teacher's pkg/core/chain package (Chain,
// acceptor.go's tip/commit-state bookkeeping and try_accept_block
// shape) and, for the state-machine transitions original_source's
// Rust code encodes as explicit enum match arms, on
// original_source/node/src/chain/fsm.rs.
package chain

import (
	"sync"

	"github.com/pkg/errors"

	"succinctattestation/internal/block"
	"succinctattestation/internal/database"
	"succinctattestation/internal/operations"
)

// Acceptor owns the chain tip and commit state: the single point of
// serialization for try_accept_block / try_revert (§5 "Acceptor (chain
// tip and commit state): read/write lock; writes only during
// try_accept_block, try_revert, restart_consensus").
type Acceptor struct {
	mu sync.RWMutex

	tip    block.Header
	commit [32]byte

	// prevTip/prevCommit retain exactly one block of history, enough to
	// support the single-level same-height fallback of §4.6; anything
	// deeper is out of scope (Database holds the full ledger).
	havePrev   bool
	prevTip    block.Header
	prevCommit [32]byte

	db  database.DB
	ops operations.Operations
}

// defaultGasLimit is the limit passed to ExecuteStateTransition; the
// real per-block limit is an execution-layer policy detail out of this
// component's scope (§1).
const defaultGasLimit = 5_000_000_000

// NewAcceptor returns an Acceptor seeded at genesis (tip height 0).
func NewAcceptor(db database.DB, ops operations.Operations, genesis block.Header) *Acceptor {
	return &Acceptor{tip: genesis, commit: genesis.StateRoot, db: db, ops: ops}
}

// Tip returns a copy of the current chain tip header.
func (a *Acceptor) Tip() block.Header {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.tip
}

// CommitState returns the state root backing the current tip.
func (a *Acceptor) CommitState() [32]byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.commit
}

// TryAcceptBlock executes blk's state transition against the current
// commit state, persists it, and advances the tip. It is the sole
// mutator that grows the chain (§4.6's "accept" action).
func (a *Acceptor) TryAcceptBlock(blk *block.Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	newState := blk.Header.StateRoot

	if a.ops != nil {
		state, _, _, err := a.ops.ExecuteStateTransition(a.commit, blk, defaultGasLimit)
		if err != nil {
			return errors.Wrap(err, "chain: execute state transition")
		}

		newState = state
	}

	if a.db != nil {
		if err := a.db.StoreBlock(blk); err != nil {
			return errors.Wrap(err, "chain: store block")
		}
	}

	a.prevTip = a.tip
	a.prevCommit = a.commit
	a.havePrev = true

	a.tip = blk.Header
	a.commit = newState

	return nil
}

// TryRevert replaces the tip with to and its commit state, the
// transactional half of fallback (§4.6). Only a single level of
// history is kept, so to must be the Acceptor's immediately prior tip.
func (a *Acceptor) TryRevert(to block.Header) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.havePrev || a.prevTip.Hash != to.Hash {
		return errors.New("chain: revert target is not the retained previous tip")
	}

	a.tip = a.prevTip
	a.commit = a.prevCommit
	a.havePrev = false

	return nil
}

// CanRevertTo reports whether to is the Acceptor's retained previous
// tip, i.e. whether TryRevert(to) would succeed.
func (a *Acceptor) CanRevertTo(to block.Header) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.havePrev && a.prevTip.Hash == to.Hash
}

// PrevTip returns the retained previous tip and whether one exists.
func (a *Acceptor) PrevTip() (block.Header, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.prevTip, a.havePrev
}
