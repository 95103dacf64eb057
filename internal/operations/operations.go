// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package operations declares the execution-layer collaborator contract
// (§6.1). Block execution and state transition are explicitly out of
// this component's scope (§1); the consensus core only ever calls
// through this interface.
package operations

import "succinctattestation/internal/block"

// Operations is the state-transition collaborator.
type Operations interface {
	// VerifyStateTransition recomputes the state root a candidate
	// claims, without applying it durably.
	VerifyStateTransition(prevCommit [32]byte, candidate *block.Block) (stateRoot [32]byte, err error)

	// ExecuteStateTransition applies candidate's transactions against
	// prevCommit, returning the resulting state root, gas used, and any
	// newly detected faults.
	ExecuteStateTransition(prevCommit [32]byte, candidate *block.Block, gasLimit uint64) (stateRoot [32]byte, usedGas uint64, faults []block.Fault, err error)

	// VerifyFaults checks that the faults attached to a round are
	// well-formed and attributable.
	VerifyFaults(faults []block.Fault, round uint64) error
}
