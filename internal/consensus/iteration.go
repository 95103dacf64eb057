// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package consensus

import (
	"sync"
	"time"

	"succinctattestation/internal/config"
	"succinctattestation/internal/provisioner"
	"succinctattestation/internal/sortition"
)

// RoundUpdate is the immutable per-round context (§3): round number,
// previous-block hash, local node's BLS public key, and the base
// step-timeout snapshot the round started with.
type RoundUpdate struct {
	Round         uint64
	PrevBlockHash [32]byte
	Seed          []byte
	PubKeyBLS     []byte
	BaseTimeouts  config.Timeouts
}

// Hash returns the round's previous-block hash; a small convenience
// used where the Rust source calls `ru.hash()`.
func (ru RoundUpdate) Hash() [32]byte { return ru.PrevBlockHash }

// RoundCommittees is the round-scoped, lazily-populated cache of
// per-iteration committees and generators (§3 Lifecycles: "committees
// are computed lazily per iteration and cached"). It lives for the
// whole round so a message from a prior iteration can still be verified
// against that iteration's committee (collect_from_past, §4.2).
type RoundCommittees struct {
	mu           sync.Mutex
	round        uint64
	seed         []byte
	provisioners *provisioner.Set
	committees   map[uint16]*sortition.Committee // key: iter<<2|stepKind
}

func committeeKey(iter uint8, stepKind uint8) uint16 {
	return uint16(iter)<<2 | uint16(stepKind)
}

// NewRoundCommittees returns a cache for round, seeded from
// provisioners at the stake distribution valid for it.
func NewRoundCommittees(round uint64, seed []byte, provisioners *provisioner.Set) *RoundCommittees {
	return &RoundCommittees{
		round:        round,
		seed:         seed,
		provisioners: provisioners,
		committees:   make(map[uint16]*sortition.Committee),
	}
}

// stepSize maps a StepName to its committee size (§3).
func stepSize(name StepName) int {
	switch name {
	case StepProposal:
		return config.ProposalCommitteeSize
	case StepValidationName:
		return config.ValidationCommitteeSize
	case StepRatificationName:
		return config.RatificationCommitteeSize
	default:
		return 0
	}
}

// Committee returns iter's committee for step, computing and caching it
// on first use. The draw is a pure function of (provisioners, seed,
// round, iter, step, size) — Generate is deterministic and the cache
// only avoids recomputation (Testable Property 3).
func (rc *RoundCommittees) Committee(iter uint8, name StepName) *sortition.Committee {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	k := committeeKey(iter, uint8(name))
	if c, ok := rc.committees[k]; ok {
		return c
	}

	step := iter*3 + uint8(name)
	c := sortition.Generate(rc.provisioners, rc.seed, rc.round, iter, step, stepSize(name))
	rc.committees[k] = c

	return c
}

// Generator returns the sole member of iter's proposal committee.
func (rc *RoundCommittees) Generator(iter uint8) []byte {
	c := rc.Committee(iter, StepProposal)
	if len(c.Members) == 0 {
		return nil
	}

	return c.Members[0].PublicKeyBLS
}

// IterationCtx carries the per-iteration mutable state: which iteration
// this is, and the shared, round-lived base timeouts that get doubled
// on consecutive misses (§4.3, §5 Timeouts — "persisted across
// iterations of the same round, reset at round boundary").
type IterationCtx struct {
	Round        uint64
	Iter         uint8
	Timeouts     *config.Timeouts
	Proposal     Handler
	Validation   Handler
	Ratification Handler
}

// NewIterationCtx returns the context for one iteration, sharing
// timeouts and handler references with the rest of the round.
func NewIterationCtx(round uint64, iter uint8, timeouts *config.Timeouts, proposal, validation, ratification Handler) *IterationCtx {
	return &IterationCtx{
		Round:        round,
		Iter:         iter,
		Timeouts:     timeouts,
		Proposal:     proposal,
		Validation:   validation,
		Ratification: ratification,
	}
}

// TimeoutFor returns the current base timeout for name.
func (c *IterationCtx) TimeoutFor(name StepName) time.Duration {
	switch name {
	case StepProposal:
		return c.Timeouts.Proposal
	case StepValidationName:
		return c.Timeouts.Validation
	case StepRatificationName:
		return c.Timeouts.Ratification
	default:
		return config.StepTimeout
	}
}

// Missed doubles name's base timeout in place (capped at MaxStepTimeout)
// after a step misses its deadline, so the next iteration waits longer
// before giving up on the same step kind (§4.3 step 5, Testable
// Property 6).
func (c *IterationCtx) Missed(name StepName) {
	switch name {
	case StepProposal:
		c.Timeouts.Proposal = config.Double(c.Timeouts.Proposal)
	case StepValidationName:
		c.Timeouts.Validation = config.Double(c.Timeouts.Validation)
	case StepRatificationName:
		c.Timeouts.Ratification = config.Double(c.Timeouts.Ratification)
	}
}
