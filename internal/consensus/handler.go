// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package consensus implements the Succinct Attestation step handlers,
// the per-iteration and per-step drivers, and the round-spinning loop
// (§4.2–§4.4). The three step handlers share one capability set
// (verify/collect/collect_from_past/handle_timeout); Design Notes §9
// prefers tagged dispatch over runtime polymorphism for this closed,
// three-member set, which this package follows with one struct per
// step implementing a common Handler interface.
package consensus

import (
	"errors"

	"succinctattestation/internal/message"
)

// Protocol errors step handlers recover from locally (§7): logged,
// dropped, the loop continues. Only Canceled and fatal I/O errors
// propagate past a step.
var (
	ErrInvalidMsgType     = errors.New("consensus: invalid message type")
	ErrNotCommitteeMember = errors.New("consensus: signer not a committee member")
	ErrInvalidSignature   = errors.New("consensus: invalid signature")
	ErrInvalidBlock       = errors.New("consensus: invalid block")
	ErrInvalidBlockHash   = errors.New("consensus: invalid block hash")
	ErrInvalidBlockSize   = errors.New("consensus: invalid block size")
	ErrTooManyTxs         = errors.New("consensus: too many transactions")
	ErrTooManyFaults      = errors.New("consensus: too many faults")
	ErrUnknownBlockSize   = errors.New("consensus: unknown block size")
)

// OutcomeKind is the three-way result of collecting a message (§4.2).
type OutcomeKind uint8

const (
	// Pending means more votes are still needed.
	Pending OutcomeKind = iota
	// Ready means the step produced a concrete result to hand to the
	// next phase.
	Ready
	// Fail means the step failed with reason (a local, recoverable
	// protocol error — not a fatal error).
	Fail
)

// StepOutcome is what Collect/CollectFromPast return.
type StepOutcome struct {
	Kind     OutcomeKind
	Outbound message.Message
	Reason   error
}

// PendingOutcome is shorthand for "need more votes".
func PendingOutcome() StepOutcome { return StepOutcome{Kind: Pending} }

// ReadyOutcome wraps an outbound message as a Ready result.
func ReadyOutcome(m message.Message) StepOutcome { return StepOutcome{Kind: Ready, Outbound: m} }

// FailOutcome wraps a local, recoverable error.
func FailOutcome(reason error) StepOutcome { return StepOutcome{Kind: Fail, Reason: reason} }

// Handler is the capability set every step (Proposal, Validation,
// Ratification) implements (§4.2).
type Handler interface {
	// Verify performs stateless checks on an inbound message.
	Verify(msg message.Message, rc *RoundCommittees) error

	// Collect mutates step state with msg and returns the outcome.
	Collect(msg message.Message, ru RoundUpdate, rc *RoundCommittees) (StepOutcome, error)

	// CollectFromPast is Collect for a message belonging to a prior
	// iteration that is still admissible (e.g. to complete a quorum
	// retroactively, §5 Ordering guarantees).
	CollectFromPast(msg message.Message, rc *RoundCommittees) (StepOutcome, error)

	// HandleTimeout is called when the step's deadline elapses without
	// a quorum; it may emit a resource request (emergency mode, §4.2.1).
	HandleTimeout(ru RoundUpdate, iter uint8) *message.Message

	// Reinitialize resets the handler's in-progress state ahead of a
	// new step, seeded with the previous phase's output message.
	Reinitialize(prev message.Message, round uint64, iter uint8)

	// StepName identifies which of the three steps this handler drives.
	StepName() StepName
}

// StepName identifies Proposal, Validation, or Ratification.
type StepName uint8

const (
	StepProposal StepName = iota
	StepValidationName
	StepRatificationName
)

func (s StepName) String() string {
	switch s {
	case StepProposal:
		return "Proposal"
	case StepValidationName:
		return "Validation"
	case StepRatificationName:
		return "Ratification"
	default:
		return "Unknown"
	}
}
