// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import (
	"net"

	"succinctattestation/internal/attestation"
	"succinctattestation/internal/block"
	"succinctattestation/internal/config"
	"succinctattestation/internal/message"
	"succinctattestation/internal/network"
)

// QuorumIngress handles quorum certificates arriving ahead of their
// candidate block (§4.7), caching the attestation and flood-requesting
// the missing candidate, then attaching it once the candidate shows up
// (§4.8).
type QuorumIngress struct {
	fsm   *FSM
	cache *attestation.Cache
}

// NewQuorumIngress returns an ingress point feeding fsm, caching
// attestations in cache.
func NewQuorumIngress(fsm *FSM, cache *attestation.Cache) *QuorumIngress {
	return &QuorumIngress{fsm: fsm, cache: cache}
}

// OnQuorum processes an inbound Quorum message (§4.7).
func (q *QuorumIngress) OnQuorum(msg message.Message, peer net.Addr) error {
	if msg.Quorum == nil || !msg.Quorum.Result.IsSuccess() {
		return nil
	}

	hash := msg.Quorum.Result.BlockHash
	tip := q.fsm.acceptor.Tip()

	switch {
	case msg.Header.Round > tip.Height+1:
		q.cache.Insert(hash, msg.Quorum.Attestation)
		return q.fsm.net.FloodRequest(network.Inventory{CandidateHashes: [][32]byte{hash}}, peer, config.HopsLimit)

	case msg.Header.Round == tip.Height+1 || (msg.Header.Round == tip.Height && hash != tip.Hash):
		candidate, ok, err := q.fsm.db.FetchCandidateBlock(hash)
		if err != nil {
			return err
		}

		if !ok {
			q.cache.Insert(hash, msg.Quorum.Attestation)
			return q.fsm.net.FloodRequest(network.Inventory{CandidateHashes: [][32]byte{hash}}, peer, config.HopsLimit)
		}

		q.AttachAttestation(candidate)

		return q.fsm.OnBlock(candidate, peer)

	default:
		return nil
	}
}

// OnCandidate is called whenever a candidate block is fetched or
// produced; it attaches a cached attestation before the block is fed
// into the chain FSM as a normal block event (§4.8).
func (q *QuorumIngress) OnCandidate(candidate *block.Block, peer net.Addr) error {
	q.AttachAttestation(candidate)
	return q.fsm.OnBlock(candidate, peer)
}

// AttachAttestation fills candidate's header attestation from the
// cache, if the header doesn't already carry one. The cache entry is
// removed on attach, matching §4.8's "attach; cache entry removed".
func (q *QuorumIngress) AttachAttestation(candidate *block.Block) {
	if !candidate.Header.Attestation.IsZero() {
		return
	}

	att, ok := q.cache.Get(candidate.Header.Hash)
	if !ok {
		return
	}

	candidate.Header.Attestation = att
	q.cache.Remove(candidate.Header.Hash)

	chainLog.WithField("hash", candidate.Header.Hash).Debug("attached cached attestation")
}
