// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"succinctattestation/internal/block"
	"succinctattestation/internal/config"
	"succinctattestation/internal/database"
	"succinctattestation/internal/message"
	"succinctattestation/internal/network"
)

var chainLog = logrus.WithField("prefix", "chain")

// State is the chain FSM's outer state (§4.6).
type State uint8

const (
	StateInSync State = iota
	StateOutOfSync
)

func (s State) String() string {
	if s == StateOutOfSync {
		return "OutOfSync"
	}

	return "InSync"
}

// presyncInfo tracks a single outstanding "fetch the next block" probe
// issued after seeing a remote block more than one height ahead (§4.6
// "begin presync").
type presyncInfo struct {
	peer      net.Addr
	target    block.Header
	start     uint64
	requested time.Time
}

// SyncRange is the (start, end] height window OutOfSync is filling in.
type SyncRange struct {
	Start uint64
	End   uint64
}

// outOfSyncCtx is the state carried while StateOutOfSync is active.
type outOfSyncCtx struct {
	peer         net.Addr
	rng          SyncRange
	pool         map[uint64]*block.Block
	attempts     int
	lastProgress time.Time
}

// FSM is the chain-synchronization state machine (§4.6). One instance
// owns one Acceptor; OnBlock and OnHeartbeat are the only mutating
// entry points and both take the same lock, matching the Acceptor's
// own single-writer discipline described in §5.
type FSM struct {
	mu sync.Mutex

	state State

	acceptor  *Acceptor
	db        database.DB
	net       network.Network
	blacklist *Blacklist
	metrics   Metrics

	presync *presyncInfo
	sync    *outOfSyncCtx

	onRestart func()
}

// NewFSM returns an InSync FSM fronting acceptor.
func NewFSM(acceptor *Acceptor, db database.DB, net network.Network, metrics Metrics, onRestart func()) *FSM {
	if metrics == nil {
		metrics = &CounterMetrics{}
	}

	return &FSM{
		acceptor:  acceptor,
		db:        db,
		net:       net,
		blacklist: NewBlacklist(),
		metrics:   metrics,
		onRestart: onRestart,
		state:     StateInSync,
	}
}

// State reports the FSM's current outer state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Blacklist exposes the rejected-hash set for inspection (tests,
// metrics).
func (f *FSM) Blacklist() *Blacklist { return f.blacklist }

// OnBlock is the single entry point for every inbound block, local or
// remote (§4.6).
func (f *FSM) OnBlock(remote *block.Block, peer net.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.blacklist.Contains(remote.Header.Hash) {
		chainLog.WithField("hash", remote.Header.Hash).Debug("ignoring blacklisted block")
		return nil
	}

	if f.state == StateOutOfSync {
		return f.outOfSyncOnBlock(remote, peer)
	}

	return f.inSyncOnBlock(remote, peer)
}

func (f *FSM) inSyncOnBlock(remote *block.Block, peer net.Addr) error {
	tip := f.acceptor.Tip()

	switch {
	case remote.Header.Height <= tip.Height:
		return f.handleSameOrLowerHeight(remote, tip, peer)

	case remote.Header.Height == tip.Height+1:
		if err := f.acceptor.TryAcceptBlock(remote); err != nil {
			return err
		}

		chainLog.WithField("height", remote.Header.Height).Info("accepted block")
		f.blacklist.Clear()

		if f.presync != nil && sameAddr(peer, f.presync.peer) && remote.Header.Height == f.presync.start+1 {
			target := f.presync.target
			srcPeer := f.presync.peer
			f.presync = nil
			f.enterOutOfSync(target, srcPeer)
		}

		return nil

	default:
		f.presync = &presyncInfo{peer: peer, target: remote.Header, start: tip.Height, requested: time.Now()}

		chainLog.WithFields(logrus.Fields{"tip": tip.Height, "remote": remote.Header.Height}).Info("entering presync")

		return f.net.SendToPeer(message.Message{Topic: message.TopicGetResource, Header: message.Header{Round: tip.Height + 1}}, peer)
	}
}

func (f *FSM) handleSameOrLowerHeight(remote *block.Block, tip block.Header, peer net.Addr) error {
	if remote.Header.Hash == tip.Hash {
		return nil
	}

	if remote.Header.Height != tip.Height {
		chainLog.WithFields(logrus.Fields{"tip": tip.Height, "remote": remote.Header.Height}).Debug("fork observation below tip")
		return nil
	}

	switch {
	case remote.Header.Iteration < tip.Iteration:
		return f.fallback(remote)

	case remote.Header.Iteration > tip.Iteration:
		if f.db == nil {
			return nil
		}

		local, ok, err := f.db.FetchBlockByHeight(tip.Height)
		if err != nil || !ok {
			return err
		}

		return f.net.SendToPeer(message.Message{Topic: message.TopicBlock, Candidate: local}, peer)

	default:
		chainLog.WithField("height", tip.Height).Warn("double candidate observed at same height and iteration")
		return nil
	}
}

// enterOutOfSync transitions into StateOutOfSync, requesting the
// (tip, min(tip+MAX_BLOCKS_TO_REQUEST, target)] range from peer (§4.6
// OutOfSync.on_entering).
func (f *FSM) enterOutOfSync(target block.Header, peer net.Addr) {
	tip := f.acceptor.Tip()

	end := tip.Height + config.MaxBlocksToRequest
	if target.Height < end {
		end = target.Height
	}

	f.state = StateOutOfSync
	f.sync = &outOfSyncCtx{
		peer:         peer,
		rng:          SyncRange{Start: tip.Height, End: end},
		pool:         map[uint64]*block.Block{target.Height: {Header: target}},
		attempts:     3,
		lastProgress: time.Now(),
	}

	chainLog.WithFields(logrus.Fields{"start": tip.Height, "end": end}).Info("entering out-of-sync")

	_ = f.net.SendToPeer(message.Message{Topic: message.TopicGetResource, Header: message.Header{Round: tip.Height, BlockHash: tip.Hash}}, peer)
}

func (f *FSM) outOfSyncOnBlock(remote *block.Block, peer net.Addr) error {
	tip := f.acceptor.Tip()

	if remote.Header.Height <= tip.Height {
		return nil
	}

	if remote.Header.Height != tip.Height+1 {
		if len(f.sync.pool) < config.MaxBlocksToRequest {
			f.sync.pool[remote.Header.Height] = remote
		}

		return nil
	}

	if err := f.acceptor.TryAcceptBlock(remote); err != nil {
		return err
	}

	f.sync.lastProgress = time.Now()
	delete(f.sync.pool, remote.Header.Height)

	for {
		next := f.acceptor.Tip().Height + 1

		blk, ok := f.sync.pool[next]
		if !ok {
			break
		}

		if err := f.acceptor.TryAcceptBlock(blk); err != nil {
			break
		}

		delete(f.sync.pool, next)
		f.sync.lastProgress = time.Now()
	}

	if f.acceptor.Tip().Height >= f.sync.rng.End {
		chainLog.WithField("height", f.acceptor.Tip().Height).Info("sync target reached")
		f.state = StateInSync
		f.sync = nil
	}

	_ = peer

	return nil
}

// OnHeartbeat is called periodically to expire stale presync state and
// drive the OutOfSync retry/backoff loop (§4.6).
func (f *FSM) OnHeartbeat() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateInSync:
		if f.presync != nil && time.Since(f.presync.requested) > config.ExpiryTimeout {
			f.presync = nil
		}

	case StateOutOfSync:
		f.outOfSyncHeartbeat()
	}
}

func (f *FSM) outOfSyncHeartbeat() {
	if time.Since(f.sync.lastProgress) <= config.ExpiryTimeout {
		return
	}

	f.sync.attempts--
	if f.sync.attempts <= 0 {
		chainLog.Warn("out-of-sync attempts exhausted, restarting consensus")

		f.state = StateInSync
		f.sync = nil

		if f.onRestart != nil {
			f.onRestart()
		}

		return
	}

	tip := f.acceptor.Tip()

	var missing []uint64
	for h := tip.Height + 1; h <= f.sync.rng.End; h++ {
		if _, ok := f.sync.pool[h]; !ok {
			missing = append(missing, h)
		}
	}

	if len(missing) > 0 {
		_ = f.net.FloodRequest(network.Inventory{BlockHeights: missing}, nil, config.HopsLimit)
	}

	f.sync.lastProgress = time.Now()
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.String() == b.String()
}
