// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package consensus

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"succinctattestation/internal/attestation"
	"succinctattestation/internal/config"
	"succinctattestation/internal/eventbus"
	"succinctattestation/internal/key"
	"succinctattestation/internal/message"
	"succinctattestation/internal/msgregistry"
	"succinctattestation/internal/operations"
	"succinctattestation/internal/provisioner"
)

var loopLog = logrus.WithField("prefix", "loop")

// ErrRoundExhausted is returned when a round runs through every
// iteration up to MaxIterations without reaching a successful quorum
// (§4.4, an exceptional condition the node logs and waits out).
var ErrRoundExhausted = errors.New("consensus: round exhausted all iterations without quorum")

// Loop spins the three-phase, iteration-retrying round described in
// §4.3-§4.4. Grounded on the teacher's pkg/core/consensus/consensus.go
// Spin loop shape (one goroutine per round, phase chaining through a
// context value), adapted to the Handler capability set and to casting
// the local node's own committee votes, which the teacher's
// single-committee BLS-aggregation design never needed to do per-step.
type Loop struct {
	Provisioners *provisioner.Set
	Ops          operations.Operations
	Keys         key.Keys
	Verifier     key.Verifier
	Bus          *eventbus.Bus
	Queue        *eventbus.InboundQueue
	FutureMsgs   *msgregistry.Registry

	// IterationDelay is the §4.4 "artificial delay" slept at the start
	// of every iteration to smooth block times (CONSENSUS_DELAY_MS,
	// §6.6). NewLoop leaves it at zero, the test-mode bypass the spec
	// calls for; cmd/node sets it to config.ConsensusDelay for real
	// block production.
	IterationDelay time.Duration

	// Sleep is the wait primitive SpinDelay and the iteration delay
	// use; nil defaults to time.Sleep. A caller may inject a stub so
	// neither wait actually blocks.
	Sleep func(time.Duration)
}

// NewLoop wires a Loop from its collaborators.
func NewLoop(provisioners *provisioner.Set, ops operations.Operations, keys key.Keys, verifier key.Verifier, bus *eventbus.Bus, queue *eventbus.InboundQueue) *Loop {
	return &Loop{Provisioners: provisioners, Ops: ops, Keys: keys, Verifier: verifier, Bus: bus, Queue: queue, FutureMsgs: msgregistry.New()}
}

// Spin runs round to completion, returning the winning Quorum message on
// success or ErrRoundExhausted if every iteration up to MaxIterations
// missed.
func (l *Loop) Spin(ctx context.Context, round uint64, prevBlockHash [32]byte, seed []byte) (message.Message, error) {
	timeouts := config.DefaultTimeouts()
	ru := RoundUpdate{Round: round, PrevBlockHash: prevBlockHash, Seed: seed, PubKeyBLS: l.Keys.BLSPubKey, BaseTimeouts: timeouts}
	rc := NewRoundCommittees(round, seed, l.Provisioners)
	registry := attestation.New(round)

	proposalH := NewProposalHandler(l.Verifier)
	validationH := NewValidationHandler(registry, l.Verifier)
	ratificationH := NewRatificationHandler(registry, l.Verifier)

	defer l.FutureMsgs.RemoveRound(round)

	var prevMsg message.Message

	for iter := uint8(0); iter < config.MaxIterations; iter++ {
		SpinDelay(l.Sleep)

		if l.IterationDelay > 0 {
			sleep := l.Sleep
			if sleep == nil {
				sleep = time.Sleep
			}

			sleep(l.IterationDelay)
		}

		for _, stashed := range l.FutureMsgs.Take(round, iter) {
			l.Queue.Push(stashed)
		}

		itCtx := NewIterationCtx(round, iter, &timeouts, proposalH, validationH, ratificationH)

		proposalH.Reinitialize(prevMsg, round, iter)
		validationH.Reinitialize(prevMsg, round, iter)
		ratificationH.Reinitialize(prevMsg, round, iter)

		propOutcome, err := l.runStep(ctx, proposalH, ru, rc, iter, itCtx.TimeoutFor(StepProposal))
		if err != nil {
			return message.Empty(), pkgerrors.Wrapf(err, "round %d iter %d: proposal step", round, iter)
		}

		if propOutcome.Kind == Ready && propOutcome.Outbound.Topic == message.TopicQuorum {
			return propOutcome.Outbound, nil
		}

		if propOutcome.Kind != Ready {
			itCtx.Missed(StepProposal)
			loopLog.WithFields(logrus.Fields{"round": round, "iter": iter}).Debug("proposal missed")

			continue
		}

		candidateMsg := propOutcome.Outbound
		l.castLocalVote(StepValidationName, rc, ru, iter, l.localValidationVote(candidateMsg))

		valOutcome, err := l.runStep(ctx, validationH, ru, rc, iter, itCtx.TimeoutFor(StepValidationName))
		if err != nil {
			return message.Empty(), pkgerrors.Wrapf(err, "round %d iter %d: validation step", round, iter)
		}

		if valOutcome.Kind == Ready && valOutcome.Outbound.Topic == message.TopicQuorum {
			return valOutcome.Outbound, nil
		}

		if valOutcome.Kind != Ready {
			itCtx.Missed(StepValidationName)
			loopLog.WithFields(logrus.Fields{"round": round, "iter": iter}).Debug("validation missed")

			continue
		}

		ratSeed := valOutcome.Outbound
		l.castLocalVote(StepRatificationName, rc, ru, iter, ratSeed.Vote)

		ratOutcome, err := l.runStep(ctx, ratificationH, ru, rc, iter, itCtx.TimeoutFor(StepRatificationName))
		if err != nil {
			return message.Empty(), pkgerrors.Wrapf(err, "round %d iter %d: ratification step", round, iter)
		}

		if ratOutcome.Kind != Ready {
			itCtx.Missed(StepRatificationName)
			loopLog.WithFields(logrus.Fields{"round": round, "iter": iter}).Debug("ratification missed")

			continue
		}

		quorumMsg := ratOutcome.Outbound
		l.Bus.Publish(quorumMsg)

		if quorumMsg.Quorum != nil && quorumMsg.Quorum.Result.IsSuccess() {
			return quorumMsg, nil
		}

		// Failure quorum: every honest peer that saw the same votes
		// reaches the same verdict and relaxes to the next iteration in
		// lockstep (the symmetric-propagation decision in ratification.go).
		prevMsg = quorumMsg
	}

	return message.Empty(), ErrRoundExhausted
}

func (l *Loop) runStep(ctx context.Context, h Handler, ru RoundUpdate, rc *RoundCommittees, iter uint8, timeout time.Duration) (StepOutcome, error) {
	ec := &ExecutionCtx{Queue: l.Queue, Bus: l.Bus, Handler: h, RU: ru, RC: rc, Iter: iter, Timeout: timeout, FutureMsgs: l.FutureMsgs}
	return ec.Run(ctx)
}

// localValidationVote decides how this node votes on a candidate: Valid
// if Ops accepts its state transition (or Ops is absent, e.g. in tests
// exercising routing logic only), Invalid if Ops rejects it, NoCandidate
// if Proposal never produced one.
func (l *Loop) localValidationVote(candidate message.Message) message.Vote {
	if candidate.Candidate == nil {
		return message.Vote{Kind: message.VoteNoCandidate}
	}

	hash := candidate.Candidate.Header.Hash

	if l.Ops == nil {
		return message.Vote{Kind: message.VoteValid, BlockHash: hash}
	}

	if _, err := l.Ops.VerifyStateTransition(candidate.Candidate.Header.PrevBlockHash, candidate.Candidate); err != nil {
		return message.Vote{Kind: message.VoteInvalid, BlockHash: hash}
	}

	return message.Vote{Kind: message.VoteValid, BlockHash: hash}
}

// castLocalVote signs and injects the local node's own vote for stepName
// into the inbound queue and onto the bus, if and only if this node
// holds a seat on that iteration's committee (§4.2, every provisioner
// votes independently once per step it is drawn into).
func (l *Loop) castLocalVote(stepName StepName, rc *RoundCommittees, ru RoundUpdate, iter uint8, vote message.Vote) {
	if l.Keys.Signer == nil || len(l.Keys.BLSPubKey) == 0 {
		return
	}

	committee := rc.Committee(iter, stepName)
	if !committee.IsMember(l.Keys.BLSPubKey) {
		return
	}

	topic := message.TopicValidation
	if stepName == StepRatificationName {
		topic = message.TopicRatification
	}

	hdr := message.Header{Round: ru.Round, Iteration: iter, Step: uint8(stepName), PubKeyBLS: l.Keys.BLSPubKey, BlockHash: vote.BlockHash}

	sig, err := l.Keys.Signer.Sign(hdr.SignableBytes(vote))
	if err != nil {
		loopLog.WithError(err).Warn("failed to sign local vote")
		return
	}

	msg := message.Message{Topic: topic, Header: hdr, Vote: vote, Signature: sig}

	l.Queue.Push(msg)
	l.Bus.Publish(msg)
}
