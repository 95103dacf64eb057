// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import (
	"sync"
	"time"

	"succinctattestation/internal/block"
)

// StallState is the stalled-chain sub-FSM's state (§4.6). It is nested
// inside the outer FSM: it only observes block arrivals and wall-clock
// progress, and reacts by driving the same revert/accept/blacklist
// machinery fallback.go uses.
type StallState uint8

const (
	// StallRunning is the normal state: the tip is advancing.
	StallRunning StallState = iota
	// Stalled means no block has been accepted within the heartbeat
	// budget and no competing fork has been observed.
	Stalled
	// StalledOnFork means no block has been accepted, and a remote
	// block at the current tip height with a different hash has been
	// seen — a concrete recovery target.
	StalledOnFork
)

func (s StallState) String() string {
	switch s {
	case Stalled:
		return "Stalled"
	case StalledOnFork:
		return "StalledOnFork"
	default:
		return "Running"
	}
}

// StallDetector watches tip progress and classifies a prolonged stall,
// the Running/Stalled/StalledOnFork sub-FSM of §4.6. original_source's
// stall_chain_fsm.rs was not present in the retrieval pack, so this is
// built directly from the prose description rather than ported line by
// line.
type StallDetector struct {
	mu sync.Mutex

	acceptor *Acceptor
	budget   time.Duration

	lastHeight   uint64
	lastProgress time.Time

	state        StallState
	forkCandidate *block.Block
}

// NewStallDetector returns a detector that considers the chain stalled
// once budget elapses since the last accepted block.
func NewStallDetector(acceptor *Acceptor, budget time.Duration) *StallDetector {
	return &StallDetector{
		acceptor:     acceptor,
		budget:       budget,
		lastHeight:   acceptor.Tip().Height,
		lastProgress: time.Now(),
	}
}

// NoteAccepted resets the detector, called whenever the FSM accepts a
// block anywhere (InSync or OutOfSync path).
func (d *StallDetector) NoteAccepted() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastHeight = d.acceptor.Tip().Height
	d.lastProgress = time.Now()
	d.state = StallRunning
	d.forkCandidate = nil
}

// ObserveCompetingBlock records a same-height, different-hash remote
// block seen while already stalled, giving StalledOnFork its recovery
// target.
func (d *StallDetector) ObserveCompetingBlock(remote *block.Block) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tip := d.acceptor.Tip()
	if d.state == StallRunning || remote.Header.Height != tip.Height || remote.Header.Hash == tip.Hash {
		return
	}

	d.state = StalledOnFork
	d.forkCandidate = remote
}

// Tick re-evaluates the stall state against wall-clock progress. It
// should be called on the same heartbeat as FSM.OnHeartbeat.
func (d *StallDetector) Tick() StallState {
	d.mu.Lock()
	defer d.mu.Unlock()

	tip := d.acceptor.Tip()
	if tip.Height != d.lastHeight {
		d.lastHeight = tip.Height
		d.lastProgress = time.Now()
		d.state = StallRunning
		d.forkCandidate = nil

		return d.state
	}

	if d.state == StalledOnFork {
		return d.state
	}

	if time.Since(d.lastProgress) >= d.budget {
		d.state = Stalled
	}

	return d.state
}

// ForkCandidate returns the block a StalledOnFork recovery should
// accept, if any.
func (d *StallDetector) ForkCandidate() *block.Block {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.forkCandidate
}

// Recover drives the sub-FSM's recovery action against fsm and resets to
// Running (§4.6): StalledOnFork runs fsm.fallback, which reverts one
// level to the Acceptor's retained previous tip, accepts the remote
// block, and blacklists the diverged local tip; it does not revert to a
// finalized ancestor further back, and fails if no previous tip is
// retained. Stalled with no identified fork just clears the blacklist
// so previously rejected blocks can be re-evaluated.
func (d *StallDetector) Recover(fsm *FSM) error {
	d.mu.Lock()
	state := d.state
	candidate := d.forkCandidate
	d.mu.Unlock()

	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	switch state {
	case StalledOnFork:
		if candidate == nil {
			return nil
		}

		if err := fsm.fallback(candidate); err != nil {
			return err
		}

		fsm.metrics.IncRevertCount()
		d.NoteAccepted()

		return nil

	case Stalled:
		fsm.blacklist.Clear()
		d.NoteAccepted()

		return nil

	default:
		return nil
	}
}
