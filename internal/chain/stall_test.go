package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/block"
)

func TestStallDetectorTransitionsToStalledOnFork(t *testing.T) {
	genesis := block.Header{Height: 5, Hash: [32]byte{1}}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)
	d := NewStallDetector(acceptor, 20*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, Stalled, d.Tick())

	remote := &block.Block{Header: block.Header{Height: 5, Hash: [32]byte{2}}}
	d.ObserveCompetingBlock(remote)

	assert.Equal(t, StalledOnFork, d.Tick())
	assert.Equal(t, remote, d.ForkCandidate())
}

func TestStallDetectorRecoverFallsBackOnFork(t *testing.T) {
	genesis := block.Header{Height: 4, Hash: [32]byte{0x0A}}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)

	ourTip := &block.Block{Header: block.Header{Height: 5, Hash: [32]byte{0x0B}}}
	require.NoError(t, acceptor.TryAcceptBlock(ourTip))

	net := &fakeNetwork{}
	metrics := &CounterMetrics{}
	fsm := NewFSM(acceptor, nil, net, metrics, nil)

	d := NewStallDetector(acceptor, 20*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	d.Tick()

	remote := &block.Block{Header: block.Header{Height: 5, Hash: [32]byte{0x0C}}}
	d.ObserveCompetingBlock(remote)
	require.Equal(t, StalledOnFork, d.Tick())

	require.NoError(t, d.Recover(fsm))

	assert.Equal(t, remote.Header.Hash, acceptor.Tip().Hash)
	assert.True(t, fsm.Blacklist().Contains(ourTip.Header.Hash))
	assert.EqualValues(t, 1, metrics.RevertCount())
	assert.Equal(t, StallRunning, d.Tick())
}

func TestStallDetectorRecoverClearsBlacklistWhenNoFork(t *testing.T) {
	genesis := block.Header{Height: 1, Hash: [32]byte{1}}
	acceptor := NewAcceptor(nil, fakeOps{}, genesis)
	net := &fakeNetwork{}
	fsm := NewFSM(acceptor, nil, net, nil, nil)
	fsm.Blacklist().Add([32]byte{9})

	d := NewStallDetector(acceptor, 20*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, Stalled, d.Tick())

	require.NoError(t, d.Recover(fsm))
	assert.False(t, fsm.Blacklist().Contains([32]byte{9}))
}
