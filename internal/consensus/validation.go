// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package consensus

import (
	"github.com/sirupsen/logrus"

	"succinctattestation/internal/attestation"
	"succinctattestation/internal/key"
	"succinctattestation/internal/message"
)

var validationLog = logrus.WithField("prefix", "validation")

// ValidationHandler drives the Validation step (§4.2.2): tally committee
// votes over the candidate forwarded by Proposal, via the round-shared
// attestation.Registry. Grounded on the teacher's agreement.handler vote
// counting, split per-step rather than aggregated BLS-style.
type ValidationHandler struct {
	registry *attestation.Registry
	verifier key.Verifier
	round    uint64
	iter     uint8
}

// NewValidationHandler returns a handler tallying into the shared
// per-round registry.
func NewValidationHandler(registry *attestation.Registry, verifier key.Verifier) *ValidationHandler {
	return &ValidationHandler{registry: registry, verifier: verifier}
}

// StepName implements Handler.
func (h *ValidationHandler) StepName() StepName { return StepValidationName }

// Reinitialize implements Handler.
func (h *ValidationHandler) Reinitialize(_ message.Message, round uint64, iter uint8) {
	h.round = round
	h.iter = iter
}

// Verify implements Handler: msg must be a Validation vote signed by a
// member of this iteration's validation committee.
func (h *ValidationHandler) Verify(msg message.Message, rc *RoundCommittees) error {
	if msg.Topic != message.TopicValidation {
		return ErrInvalidMsgType
	}

	committee := rc.Committee(msg.Header.Iteration, StepValidationName)
	if !committee.IsMember(msg.Header.PubKeyBLS) {
		return ErrNotCommitteeMember
	}

	if h.verifier != nil {
		signable := msg.Header.SignableBytes(msg.Vote)
		if !h.verifier.Verify(msg.Header.PubKeyBLS, signable, msg.Signature) {
			return ErrInvalidSignature
		}
	}

	return nil
}

func (h *ValidationHandler) collect(msg message.Message, rc *RoundCommittees) (StepOutcome, error) {
	if err := h.Verify(msg, rc); err != nil {
		return FailOutcome(err), nil
	}

	committee := rc.Committee(msg.Header.Iteration, StepValidationName)
	occurrences := committee.OccurrencesOf(msg.Header.PubKeyBLS)

	reached, fault := h.registry.AddStepVote(msg.Header.Iteration, attestation.StepValidation, msg.Header.PubKeyBLS, occurrences, msg.Vote, msg.Signature, committee.Size())
	if fault != nil {
		validationLog.WithField("fault", fault.String()).Warn("equivocation detected")
	}

	if !reached {
		return PendingOutcome(), nil
	}

	out := message.Message{
		Topic:  message.TopicRatification,
		Header: msg.Header,
		Vote:   msg.Vote,
	}

	return ReadyOutcome(out), nil
}

// Collect implements Handler.
func (h *ValidationHandler) Collect(msg message.Message, _ RoundUpdate, rc *RoundCommittees) (StepOutcome, error) {
	return h.collect(msg, rc)
}

// CollectFromPast implements Handler: votes for an already-advanced
// iteration can still complete that iteration's quorum retroactively.
func (h *ValidationHandler) CollectFromPast(msg message.Message, rc *RoundCommittees) (StepOutcome, error) {
	return h.collect(msg, rc)
}

// HandleTimeout implements Handler: Validation has no resource to
// request on timeout; the loop treats the miss as a Pending outcome and
// advances to the next iteration.
func (h *ValidationHandler) HandleTimeout(_ RoundUpdate, _ uint8) *message.Message {
	return nil
}
