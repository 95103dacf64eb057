// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package config carries the protocol constants from §6.6 of the Succinct
// Attestation specification, plus the knobs an operator may override
// through a TOML file.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Protocol constants. These must match bit-for-bit across every node in
// the network; changing them is a hard fork.
const (
	// MaxIterations is the number of Proposal/Validation/Ratification
	// attempts a round may run through before giving up.
	MaxIterations = 71

	// MaxStep is the highest step index reachable within a round
	// (MaxIterations*3), kept only for parity with the wire format.
	MaxStep = MaxIterations * 3

	// QuorumThreshold is the fraction of a committee's weight that must
	// agree for a quorum.
	QuorumThreshold = 0.67

	// ProposalCommitteeSize is always 1: the generator.
	ProposalCommitteeSize = 1

	// ValidationCommitteeSize is the size of the validation committee.
	ValidationCommitteeSize = 64

	// RatificationCommitteeSize is the size of the ratification committee.
	RatificationCommitteeSize = 64

	// RelaxIterationThreshold marks the iteration at which the Proposal
	// step enters emergency mode and starts flood-requesting candidates
	// on timeout, rather than waiting for a generator that may be offline.
	RelaxIterationThreshold = 10

	// MaxBlocksToRequest bounds how far an OutOfSync range can stretch,
	// and how large its block pool may grow.
	MaxBlocksToRequest = 50

	// HopsLimit bounds flood-request propagation.
	HopsLimit = 16

	// MaxBlockSize bounds a candidate block's serialized size.
	MaxBlockSize = 1 << 20 // 1 MiB

	// MaxTransactions bounds a candidate block's transaction count.
	MaxTransactions = 10000

	// MaxFaults bounds a candidate block's fault-proof count.
	MaxFaults = 1000
)

// IsEmergencyIteration reports whether iter has crossed the threshold at
// which the Proposal step switches to flood-requesting missing
// candidates on timeout instead of waiting on the generator.
func IsEmergencyIteration(iter uint8) bool {
	return iter >= RelaxIterationThreshold
}

// Timing constants, expressed as durations for idiomatic use.
const (
	StepTimeout       = 5 * time.Second
	MaxStepTimeout     = 60 * time.Second
	ConsensusDelay     = 1 * time.Second
	ExpiryTimeout      = 5 * time.Second
	AttestationCacheTTL = 60 * time.Second
)

// Timeouts holds the per-step-kind base timeout, carried across iterations
// of the same round and reset at round boundaries (§5 Timeouts).
type Timeouts struct {
	Proposal     time.Duration
	Validation   time.Duration
	Ratification time.Duration
}

// DefaultTimeouts returns the protocol's initial per-step timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Proposal:     StepTimeout,
		Validation:   StepTimeout,
		Ratification: StepTimeout,
	}
}

// Double returns d doubled and capped at MaxStepTimeout, implementing the
// exponential-backoff rule from §4.3 / Testable Property 6.
func Double(d time.Duration) time.Duration {
	d *= 2
	if d > MaxStepTimeout {
		return MaxStepTimeout
	}

	return d
}

// Config is the subset of node configuration relevant to the consensus
// engine and chain sync FSM. Everything else (network listen address,
// RPC, wallet) is out of this component's scope. cmd/node reads only
// Consensus.DelayMS and Sync.ExpiryTimeoutMS from it; the consensus and
// chain packages use the constants above, so the other fields do not
// change their behaviour.
type Config struct {
	Consensus struct {
		MaxIterations           int     `toml:"max_iterations"`
		QuorumThreshold         float64 `toml:"quorum_threshold"`
		ValidationCommitteeSize int     `toml:"validation_committee_size"`
		RatificationCommitteeSize int   `toml:"ratification_committee_size"`
		RelaxIterationThreshold int     `toml:"relax_iteration_threshold"`
		StepTimeoutMS           int     `toml:"step_timeout_ms"`
		MaxStepTimeoutMS        int     `toml:"max_step_timeout_ms"`
		DelayMS                 int     `toml:"delay_ms"`
	} `toml:"consensus"`

	Sync struct {
		MaxBlocksToRequest int `toml:"max_blocks_to_request"`
		ExpiryTimeoutMS    int `toml:"expiry_timeout_ms"`
		Attempts           int `toml:"attempts"`
	} `toml:"sync"`
}

// Default returns a Config populated with the protocol defaults.
func Default() *Config {
	c := &Config{}
	c.Consensus.MaxIterations = MaxIterations
	c.Consensus.QuorumThreshold = QuorumThreshold
	c.Consensus.ValidationCommitteeSize = ValidationCommitteeSize
	c.Consensus.RatificationCommitteeSize = RatificationCommitteeSize
	c.Consensus.RelaxIterationThreshold = RelaxIterationThreshold
	c.Consensus.StepTimeoutMS = int(StepTimeout / time.Millisecond)
	c.Consensus.MaxStepTimeoutMS = int(MaxStepTimeout / time.Millisecond)
	c.Consensus.DelayMS = int(ConsensusDelay / time.Millisecond)

	c.Sync.MaxBlocksToRequest = MaxBlocksToRequest
	c.Sync.ExpiryTimeoutMS = int(ExpiryTimeout / time.Millisecond)
	c.Sync.Attempts = 3

	return c
}

// Load reads a TOML config file, applying it on top of the protocol
// defaults. A missing or empty path is not an error: the defaults are
// returned unchanged, matching the teacher's tolerant boot path.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}

	return c, nil
}
