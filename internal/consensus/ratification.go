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

var ratificationLog = logrus.WithField("prefix", "ratification")

// RatificationHandler drives the Ratification step (§4.2.3): tally
// committee votes over Validation's outcome and, on quorum, emit the
// round-ending Quorum message. A quorum is emitted for every outcome
// kind, success or failure, not only VoteValid: peers that only saw a
// subset of Validation traffic still need the signal to advance their
// iteration in lockstep (§9 open question, resolved in favor of
// symmetric failure propagation).
type RatificationHandler struct {
	registry *attestation.Registry
	verifier key.Verifier
	round    uint64
	iter     uint8
}

// NewRatificationHandler returns a handler tallying into the shared
// per-round registry.
func NewRatificationHandler(registry *attestation.Registry, verifier key.Verifier) *RatificationHandler {
	return &RatificationHandler{registry: registry, verifier: verifier}
}

// StepName implements Handler.
func (h *RatificationHandler) StepName() StepName { return StepRatificationName }

// Reinitialize implements Handler.
func (h *RatificationHandler) Reinitialize(_ message.Message, round uint64, iter uint8) {
	h.round = round
	h.iter = iter
}

// Verify implements Handler.
func (h *RatificationHandler) Verify(msg message.Message, rc *RoundCommittees) error {
	if msg.Topic != message.TopicRatification {
		return ErrInvalidMsgType
	}

	committee := rc.Committee(msg.Header.Iteration, StepRatificationName)
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

func resultKindFor(v message.VoteKind) message.RatificationResultKind {
	switch v {
	case message.VoteValid:
		return message.RatificationSuccess
	case message.VoteInvalid:
		return message.RatificationFailInvalid
	case message.VoteNoCandidate:
		return message.RatificationFailNoCandidate
	default:
		return message.RatificationNoQuorum
	}
}

func (h *RatificationHandler) collect(msg message.Message, rc *RoundCommittees) (StepOutcome, error) {
	if err := h.Verify(msg, rc); err != nil {
		return FailOutcome(err), nil
	}

	committee := rc.Committee(msg.Header.Iteration, StepRatificationName)
	occurrences := committee.OccurrencesOf(msg.Header.PubKeyBLS)

	reached, fault := h.registry.AddStepVote(msg.Header.Iteration, attestation.StepRatification, msg.Header.PubKeyBLS, occurrences, msg.Vote, msg.Signature, committee.Size())
	if fault != nil {
		ratificationLog.WithField("fault", fault.String()).Warn("equivocation detected")
	}

	if !reached {
		return PendingOutcome(), nil
	}

	att := h.registry.GetAttestation(msg.Header.Iteration)

	result := message.RatificationResult{Kind: resultKindFor(msg.Vote.Kind), BlockHash: msg.Vote.BlockHash}

	out := message.Message{
		Topic:  message.TopicQuorum,
		Header: msg.Header,
		Vote:   msg.Vote,
		Quorum: &message.QuorumPayload{Result: result, Attestation: att},
	}

	if result.IsSuccess() {
		ratificationLog.WithFields(logrus.Fields{"round": msg.Header.Round, "iter": msg.Header.Iteration}).Info("quorum reached")
	}

	return ReadyOutcome(out), nil
}

// Collect implements Handler.
func (h *RatificationHandler) Collect(msg message.Message, _ RoundUpdate, rc *RoundCommittees) (StepOutcome, error) {
	return h.collect(msg, rc)
}

// CollectFromPast implements Handler.
func (h *RatificationHandler) CollectFromPast(msg message.Message, rc *RoundCommittees) (StepOutcome, error) {
	return h.collect(msg, rc)
}

// HandleTimeout implements Handler: no resource request; the loop
// treats the miss as a Pending outcome and advances to the next
// iteration.
func (h *RatificationHandler) HandleTimeout(_ RoundUpdate, _ uint8) *message.Message {
	return nil
}
