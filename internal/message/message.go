// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package message defines the envelope and vote types step handlers and
// the chain FSM exchange (§3, §6.4). Shaped after the teacher's
// p2p/wire/message package (Topic-keyed envelopes, a Header embedded in
// every consensus payload) but trimmed to this component's scope: no
// wire codec, since byte-for-byte serialization is a Non-goal (§1).
package message

import (
	"encoding/binary"
	"net"

	"succinctattestation/internal/block"
)

// Topic identifies the kind of payload an envelope carries.
type Topic uint8

// Topics exchanged by the consensus core and chain FSM.
const (
	TopicCandidate Topic = iota
	TopicValidation
	TopicRatification
	TopicQuorum
	TopicGetResource
	TopicBlock
)

func (t Topic) String() string {
	switch t {
	case TopicCandidate:
		return "Candidate"
	case TopicValidation:
		return "Validation"
	case TopicRatification:
		return "Ratification"
	case TopicQuorum:
		return "Quorum"
	case TopicGetResource:
		return "GetResource"
	case TopicBlock:
		return "Block"
	default:
		return "Unknown"
	}
}

// VoteKind distinguishes the four vote variants from §3.
type VoteKind uint8

const (
	// VoteValid votes for a specific candidate block.
	VoteValid VoteKind = iota
	// VoteInvalid votes the candidate down.
	VoteInvalid
	// VoteNoCandidate is cast when no candidate arrived in time.
	VoteNoCandidate
	// VoteNoQuorum is the step's timeout verdict.
	VoteNoQuorum
)

// Vote is a signed opinion over a candidate at a given (round, iter, step).
type Vote struct {
	Kind      VoteKind
	BlockHash [32]byte
}

// Header identifies the (round, iteration, step) a message belongs to,
// the unit §3 and §5 key every routing and quorum decision on.
type Header struct {
	Round     uint64
	Iteration uint8
	Step      uint8
	PubKeyBLS []byte
	BlockHash [32]byte
}

// SignableBytes returns the bytes a Vote signature is computed over:
// (round, iter, step, vote), per §3.
func (h Header) SignableBytes(v Vote) []byte {
	buf := make([]byte, 8+1+1+1+32)
	binary.BigEndian.PutUint64(buf[0:8], h.Round)
	buf[8] = h.Iteration
	buf[9] = h.Step
	buf[10] = byte(v.Kind)
	copy(buf[11:], v.BlockHash[:])

	return buf
}

// Metadata is optional network provenance attached to an inbound
// message, used by the chain FSM to reply to the originating peer.
type Metadata struct {
	SrcAddr net.Addr
}

// Message is the envelope exchanged between the network, the consensus
// step handlers, and the chain FSM.
type Message struct {
	Topic     Topic
	Header    Header
	Vote      Vote
	Candidate *block.Block
	Quorum    *QuorumPayload
	Signature []byte
	Metadata  *Metadata
}

// QuorumPayload bundles the two certificates a Ratification step emits
// on success, matching the Attestation shape from §3.
type QuorumPayload struct {
	Result      RatificationResult
	Attestation block.Attestation
}

// RatificationResultKind distinguishes a successful quorum from the
// various failure outcomes (§3, §4.2.3).
type RatificationResultKind uint8

const (
	RatificationSuccess RatificationResultKind = iota
	RatificationFailValid
	RatificationFailInvalid
	RatificationFailNoCandidate
	RatificationNoQuorum
)

// RatificationResult is Success(Vote::Valid(h)) or a failure variant.
type RatificationResult struct {
	Kind      RatificationResultKind
	BlockHash [32]byte
}

// IsSuccess reports whether r represents a terminal, winning quorum.
func (r RatificationResult) IsSuccess() bool {
	return r.Kind == RatificationSuccess
}

// Empty returns the zero-value "no message yet" sentinel used to seed
// the first phase of an iteration (§4.4).
func Empty() Message {
	return Message{}
}

// IsEmpty reports whether m is the zero value.
func (m Message) IsEmpty() bool {
	return m.Topic == TopicCandidate && m.Candidate == nil && m.Quorum == nil && len(m.Signature) == 0
}
