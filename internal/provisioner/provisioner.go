// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package provisioner holds the stake-weighted participant set that
// committee sortition (§4.1) draws from. It is adapted from the
// teacher's pkg/core/consensus/user.Provisioners: same Member/Stake
// split, same map-plus-sorted-keys shape, generalized with an
// eligibility range per §3 and trimmed of the wire codec the teacher
// needed for its own block-gossip format (out of scope here per §1's
// Non-goals on wire serialization).
package provisioner

import (
	"bytes"
	"fmt"
	"sort"
)

// Stake is one deposit backing a Member's voting weight, eligible for
// the inclusive [StartHeight, EndHeight] round range.
type Stake struct {
	Amount      uint64
	StartHeight uint64
	EndHeight   uint64
}

// Active reports whether the stake counts toward round.
func (s Stake) Active(round uint64) bool {
	return s.StartHeight <= round && round <= s.EndHeight
}

// Member is a single provisioner: a BLS public key and the stakes backing
// it. A provisioner may hold more than one stake (e.g. a top-up).
type Member struct {
	PublicKeyBLS []byte
	Stakes       []Stake
}

// TotalStakeAt sums the stakes active at round.
func (m *Member) TotalStakeAt(round uint64) uint64 {
	var total uint64

	for _, s := range m.Stakes {
		if s.Active(round) {
			total += s.Amount
		}
	}

	return total
}

// Set is the current provisioner set: a sorted key order (for
// determinism, per Testable Property 3) plus a lookup map.
type Set struct {
	order   [][]byte
	Members map[string]*Member
}

// New returns an empty provisioner set.
func New() *Set {
	return &Set{Members: make(map[string]*Member)}
}

// Add inserts or augments a provisioner's stake. Re-inserting an existing
// key appends another Stake rather than replacing the member, mirroring
// AddStake in the teacher.
func (p *Set) Add(pubKeyBLS []byte, stake Stake) {
	k := string(pubKeyBLS)

	m, ok := p.Members[k]
	if !ok {
		m = &Member{PublicKeyBLS: append([]byte(nil), pubKeyBLS...)}
		p.Members[k] = m
		p.insertSorted(pubKeyBLS)
	}

	m.Stakes = append(m.Stakes, stake)
}

func (p *Set) insertSorted(key []byte) {
	i := sort.Search(len(p.order), func(i int) bool {
		return bytes.Compare(p.order[i], key) >= 0
	})

	p.order = append(p.order, nil)
	copy(p.order[i+1:], p.order[i:])
	p.order[i] = append([]byte(nil), key...)
}

// Len returns the number of distinct provisioners.
func (p *Set) Len() int {
	return len(p.order)
}

// MemberAt returns the i-th member in sorted key order, the order used by
// sortition tie-breaking (§4.1).
func (p *Set) MemberAt(i int) (*Member, error) {
	if i < 0 || i >= len(p.order) {
		return nil, fmt.Errorf("provisioner: index %d out of bounds (%d members)", i, len(p.order))
	}

	return p.Members[string(p.order[i])], nil
}

// GetMember looks a provisioner up by BLS public key.
func (p *Set) GetMember(pubKeyBLS []byte) *Member {
	return p.Members[string(pubKeyBLS)]
}

// Keys returns the sorted provisioner keys, read-only for the caller.
func (p *Set) Keys() [][]byte {
	return p.order
}

// TotalWeightAt sums the active stake of every provisioner at round.
func (p *Set) TotalWeightAt(round uint64) uint64 {
	var total uint64

	for _, m := range p.Members {
		total += m.TotalStakeAt(round)
	}

	return total
}

// SubsetSizeAt counts how many provisioners have at least one stake
// active at round, mirroring SubsetSizeAt in the teacher.
func (p *Set) SubsetSizeAt(round uint64) int {
	var size int

	for _, m := range p.Members {
		if m.TotalStakeAt(round) > 0 {
			size++
		}
	}

	return size
}
