package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/block"
)

func hashFor(h uint64) [32]byte {
	var out [32]byte
	out[0] = byte(h)
	out[1] = byte(h >> 8)

	return out
}

func blockAt(height uint64, iter uint8) *block.Block {
	b := &block.Block{Header: block.Header{Height: height, Iteration: iter}}
	b.Header.Hash = hashFor(height)
	b.Header.Hash[31] = iter // let the iteration perturb the hash so siblings differ

	return b
}

func TestFSMAcceptsNextBlock(t *testing.T) {
	genesis := block.Header{Height: 10}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)
	net := &fakeNetwork{}
	fsm := NewFSM(acceptor, nil, net, nil, nil)

	next := blockAt(11, 0)
	require.NoError(t, fsm.OnBlock(next, stubAddr("peer:1")))

	assert.Equal(t, next.Header.Hash, fsm.acceptor.Tip().Hash)
	assert.Equal(t, StateInSync, fsm.State())
}

func TestFSMFallbackOnLowerIterationSibling(t *testing.T) {
	genesis := block.Header{Height: 9}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)
	net := &fakeNetwork{}
	metrics := &CounterMetrics{}
	fsm := NewFSM(acceptor, nil, net, metrics, nil)

	ourTip := blockAt(10, 3)
	require.NoError(t, fsm.OnBlock(ourTip, stubAddr("peer:self")))
	require.Equal(t, ourTip.Header.Hash, fsm.acceptor.Tip().Hash)

	sibling := blockAt(10, 1)
	require.NoError(t, fsm.OnBlock(sibling, stubAddr("peer:2")))

	assert.Equal(t, sibling.Header.Hash, fsm.acceptor.Tip().Hash)
	assert.True(t, fsm.Blacklist().Contains(ourTip.Header.Hash))
	assert.EqualValues(t, 1, metrics.FallbackCount())
}

func TestFSMHigherIterationSiblingKeepsLocalTip(t *testing.T) {
	genesis := block.Header{Height: 9}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)
	net := &fakeNetwork{}
	fsm := NewFSM(acceptor, nil, net, nil, nil)

	ourTip := blockAt(10, 1)
	require.NoError(t, fsm.OnBlock(ourTip, stubAddr("peer:self")))

	// Higher-iteration sibling: FSM keeps its own tip, db is nil here so
	// the reply path short-circuits without panicking.
	higherIter := blockAt(10, 3)
	_ = fsm.OnBlock(higherIter, stubAddr("peer:3"))

	assert.Equal(t, ourTip.Header.Hash, fsm.acceptor.Tip().Hash)
}

func TestFSMPresyncThenOutOfSyncDrainsToTarget(t *testing.T) {
	genesis := block.Header{Height: 100}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)
	net := &fakeNetwork{}
	fsm := NewFSM(acceptor, nil, net, nil, nil)

	peer := stubAddr("peer:sync")

	far := blockAt(150, 0)
	require.NoError(t, fsm.OnBlock(far, peer))
	assert.Equal(t, StateInSync, fsm.State(), "should still be presyncing, not OutOfSync yet")

	next := blockAt(101, 0)
	require.NoError(t, fsm.OnBlock(next, peer))
	require.Equal(t, StateOutOfSync, fsm.State())

	for h := uint64(102); h <= 150; h++ {
		require.NoError(t, fsm.OnBlock(blockAt(h, 0), peer))
	}

	assert.Equal(t, StateInSync, fsm.State())
	assert.Equal(t, uint64(150), fsm.acceptor.Tip().Height)
}
