// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package network declares the gossip-transport collaborator contract
// (§6.3). The core treats the network as best-effort; no delivery
// guarantees are assumed.
package network

import (
	"net"

	"succinctattestation/internal/message"
)

// Network is the gossip-transport collaborator.
type Network interface {
	Broadcast(msg message.Message) error
	SendToPeer(msg message.Message, addr net.Addr) error
	FloodRequest(inv Inventory, src net.Addr, hops int) error
	PublicAddr() net.Addr
}

// Inventory describes the items a GetResource / flood-request is asking
// peers for (candidate blocks or ledger blocks, by hash or height).
type Inventory struct {
	CandidateHashes [][32]byte
	BlockHeights    []uint64
}
