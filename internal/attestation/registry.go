// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package attestation aggregates per-iteration step votes into
// Attestations, detects quorum, and is the single source of truth for
// equivocation fault evidence (§4.5). Grounded on the teacher's
// agreement.handler's vote-counting idiom (VotesFor / Quorum /
// ReconstructApk in pkg/core/consensus/agreement/handler.go), adapted
// from a 64-member single-step BLS aggregation to the two-step
// (Validation, Ratification) per-iteration bookkeeping Succinct
// Attestation needs.
package attestation

import (
	"fmt"
	"math"
	"sync"

	"succinctattestation/internal/block"
	"succinctattestation/internal/message"
)

// Step identifies which of the two vote-bearing steps a ballot belongs
// to. Proposal has no step vote: its sole "vote" is the generator's
// candidate itself.
type Step uint8

const (
	StepValidation Step = iota
	StepRatification
)

// FaultProof is the evidence a provisioner voted twice at the same
// (round, iter, step) with different votes (§3 invariant).
type FaultProof struct {
	Round      uint64
	Iteration  uint8
	Step       Step
	PubKeyBLS  []byte
	FirstVote  message.Vote
	SecondVote message.Vote
}

type ballot struct {
	vote        message.Vote
	occurrences int
	signature   []byte
}

type stepTally struct {
	voters      map[string]ballot
	weightByVote map[message.VoteKind]uint64
	sigByVote    map[message.VoteKind][][]byte
	quorumReached message.VoteKind
	hasQuorum     bool
}

func newStepTally() *stepTally {
	return &stepTally{
		voters:       make(map[string]ballot),
		weightByVote: make(map[message.VoteKind]uint64),
		sigByVote:    make(map[message.VoteKind][][]byte),
	}
}

// Registry is the per-round bookkeeping of step votes, one instance
// created fresh at the start of every round (§3 Lifecycles).
type Registry struct {
	mu     sync.Mutex
	round  uint64
	tallys map[uint8]map[Step]*stepTally
	faults []FaultProof
}

// New returns a fresh Registry for round.
func New(round uint64) *Registry {
	return &Registry{
		round:  round,
		tallys: make(map[uint8]map[Step]*stepTally),
	}
}

func (r *Registry) tallyFor(iter uint8, step Step) *stepTally {
	bySt, ok := r.tallys[iter]
	if !ok {
		bySt = make(map[Step]*stepTally)
		r.tallys[iter] = bySt
	}

	t, ok := bySt[step]
	if !ok {
		t = newStepTally()
		bySt[step] = t
	}

	return t
}

// AddStepVote records one provisioner's vote at (iter, step). occurrences
// is the number of committee seats pubKeyBLS holds (its voting weight).
// quorumCommitteeSize is the full committee size used to compute the
// ⌈0.67·size⌉ threshold (§3). Returns whether (iter, step) has reached
// quorum on this vote's kind (true for the completing vote and for every
// later vote of that kind), and a non-nil FaultProof if pubKeyBLS had
// already voted differently at this exact (iter, step).
func (r *Registry) AddStepVote(iter uint8, step Step, pubKeyBLS []byte, occurrences int, vote message.Vote, sig []byte, quorumCommitteeSize int) (reachedQuorum bool, fault *FaultProof) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.tallyFor(iter, step)
	key := string(pubKeyBLS)

	if prior, voted := t.voters[key]; voted {
		if prior.vote != vote {
			fault = &FaultProof{
				Round:      r.round,
				Iteration:  iter,
				Step:       step,
				PubKeyBLS:  append([]byte(nil), pubKeyBLS...),
				FirstVote:  prior.vote,
				SecondVote: vote,
			}
			r.faults = append(r.faults, *fault)
		}

		return t.hasQuorum && t.quorumReached == vote.Kind, fault
	}

	t.voters[key] = ballot{vote: vote, occurrences: occurrences, signature: sig}
	t.weightByVote[vote.Kind] += uint64(occurrences)
	t.sigByVote[vote.Kind] = append(t.sigByVote[vote.Kind], sig)

	threshold := Quorum(quorumCommitteeSize)
	if !t.hasQuorum && t.weightByVote[vote.Kind] >= uint64(threshold) {
		t.hasQuorum = true
		t.quorumReached = vote.Kind
	}

	return t.hasQuorum && t.quorumReached == vote.Kind, fault
}

// Quorum returns ⌈0.67·committeeSize⌉, the number of signers needed.
func Quorum(committeeSize int) int {
	return int(math.Ceil(0.67 * float64(committeeSize)))
}

// HasQuorum reports whether (iter, step) has reached quorum on any vote.
func (r *Registry) HasQuorum(iter uint8, step Step) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySt, ok := r.tallys[iter]
	if !ok {
		return false
	}

	t, ok := bySt[step]

	return ok && t.hasQuorum
}

// WinningVote returns the Vote kind that reached quorum at (iter, step),
// if any.
func (r *Registry) WinningVote(iter uint8, step Step) (message.VoteKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySt, ok := r.tallys[iter]
	if !ok {
		return 0, false
	}

	t, ok := bySt[step]
	if !ok || !t.hasQuorum {
		return 0, false
	}

	return t.quorumReached, true
}

// GetAttestation assembles the Attestation for iter from whichever
// validation and ratification quorums have been reached so far. The
// signature bundling is a stand-in aggregate (real BLS aggregation is an
// out-of-scope crypto primitive, §1): it concatenates the collected
// per-signer signatures so the field is non-empty iff a quorum exists.
func (r *Registry) GetAttestation(iter uint8) block.Attestation {
	r.mu.Lock()
	defer r.mu.Unlock()

	bySt, ok := r.tallys[iter]
	if !ok {
		return block.Attestation{}
	}

	var att block.Attestation

	if vt, ok := bySt[StepValidation]; ok && vt.hasQuorum {
		att.ValidationResult = quorumToBlockQuorum(vt)
	}

	if rt, ok := bySt[StepRatification]; ok && rt.hasQuorum {
		att.RatificationResult = quorumToBlockQuorum(rt)
	}

	return att
}

func quorumToBlockQuorum(t *stepTally) block.Quorum {
	sigs := t.sigByVote[t.quorumReached]

	var bitset uint64

	agg := make([]byte, 0)
	for i, s := range sigs {
		bitset |= 1 << uint(i%64)
		agg = append(agg, s...)
	}

	return block.Quorum{AggregatedSignature: agg, BitSet: bitset}
}

// GetFaults returns every equivocation proof observed so far this round.
func (r *Registry) GetFaults() []FaultProof {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]FaultProof(nil), r.faults...)
}

// String renders a FaultProof for logging.
func (f FaultProof) String() string {
	return fmt.Sprintf("equivocation: round=%d iter=%d step=%d signer=%x", f.Round, f.Iteration, f.Step, f.PubKeyBLS)
}
