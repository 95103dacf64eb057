// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package consensus

import (
	"sync"

	"github.com/sirupsen/logrus"

	"succinctattestation/internal/config"
	"succinctattestation/internal/key"
	"succinctattestation/internal/message"
)

var proposalLog = logrus.WithField("prefix", "proposal")

// ProposalHandler drives the Proposal step (§4.2.1): accept the
// generator's single candidate, verify it, and hand it to Validation.
// Grounded on the proposal handler in original_source/consensus/src/
// proposal/handler.rs: one candidate slot per iteration, emergency
// flood-request past RelaxIterationThreshold.
type ProposalHandler struct {
	mu        sync.Mutex
	verifier  key.Verifier
	round     uint64
	iter      uint8
	candidate message.Message
	collected bool
}

// NewProposalHandler returns a handler verifying generator signatures
// with verifier.
func NewProposalHandler(verifier key.Verifier) *ProposalHandler {
	return &ProposalHandler{verifier: verifier}
}

// StepName implements Handler.
func (h *ProposalHandler) StepName() StepName { return StepProposal }

// Reinitialize implements Handler.
func (h *ProposalHandler) Reinitialize(_ message.Message, round uint64, iter uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.round = round
	h.iter = iter
	h.candidate = message.Message{}
	h.collected = false
}

// Verify implements Handler: the candidate must come from this
// iteration's sole generator, carry a matching hash, a valid signature,
// and respect the block size/count bounds (§3 invariants).
func (h *ProposalHandler) Verify(msg message.Message, rc *RoundCommittees) error {
	if msg.Topic != message.TopicCandidate || msg.Candidate == nil {
		return ErrInvalidMsgType
	}

	generator := rc.Generator(msg.Header.Iteration)
	if generator == nil || string(generator) != string(msg.Header.PubKeyBLS) {
		return ErrNotCommitteeMember
	}

	if msg.Header.BlockHash != msg.Candidate.Header.Hash {
		return ErrInvalidBlockHash
	}

	if msg.Candidate.Size() > config.MaxBlockSize {
		return ErrInvalidBlockSize
	}

	if len(msg.Candidate.Txs) > config.MaxTransactions {
		return ErrTooManyTxs
	}

	if len(msg.Candidate.Faults) > config.MaxFaults {
		return ErrTooManyFaults
	}

	if h.verifier != nil && !h.verifier.Verify(generator, msg.Header.BlockHash[:], msg.Signature) {
		return ErrInvalidSignature
	}

	return nil
}

// Collect implements Handler: the first verified candidate for this
// iteration wins the slot and is forwarded as-is to seed Validation.
func (h *ProposalHandler) Collect(msg message.Message, _ RoundUpdate, rc *RoundCommittees) (StepOutcome, error) {
	if err := h.Verify(msg, rc); err != nil {
		return FailOutcome(err), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.collected {
		return PendingOutcome(), nil
	}

	h.candidate = msg
	h.collected = true

	return ReadyOutcome(msg), nil
}

// CollectFromPast implements Handler: a late candidate for an iteration
// already past can still be useful if Validation/Ratification are still
// missing it to complete a retroactive quorum (§5 Ordering guarantees).
func (h *ProposalHandler) CollectFromPast(msg message.Message, rc *RoundCommittees) (StepOutcome, error) {
	if err := h.Verify(msg, rc); err != nil {
		return FailOutcome(err), nil
	}

	return ReadyOutcome(msg), nil
}

// HandleTimeout implements Handler: past RelaxIterationThreshold, the
// step emits a GetResource request for the missing candidate instead of
// waiting indefinitely on a possibly-offline generator. The request
// carries only the iteration; no round or block hash is set.
func (h *ProposalHandler) HandleTimeout(_ RoundUpdate, iter uint8) *message.Message {
	if !config.IsEmergencyIteration(iter) {
		return nil
	}

	proposalLog.WithField("iter", iter).Debug("entering emergency candidate request")

	req := message.Message{Topic: message.TopicGetResource, Header: message.Header{Iteration: iter}}

	return &req
}
