package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/block"
)

func TestTryAcceptBlockAdvancesTipAndCommit(t *testing.T) {
	genesis := block.Header{Height: 0}
	a := NewAcceptor(nil, fakeOps{}, genesis)

	blk := &block.Block{Header: block.Header{Height: 1, StateRoot: [32]byte{1}}}
	blk.Header.Hash = [32]byte{0xAA}

	require.NoError(t, a.TryAcceptBlock(blk))

	assert.Equal(t, blk.Header.Hash, a.Tip().Hash)
	assert.Equal(t, blk.Header.StateRoot, a.CommitState())

	prev, ok := a.PrevTip()
	require.True(t, ok)
	assert.Equal(t, genesis.Hash, prev.Hash)
}

func TestTryRevertRequiresRetainedPrevTip(t *testing.T) {
	genesis := block.Header{Height: 0, Hash: [32]byte{0x01}}
	a := NewAcceptor(nil, fakeOps{}, genesis)

	other := block.Header{Height: 5, Hash: [32]byte{0xFF}}
	assert.Error(t, a.TryRevert(other))

	blk := &block.Block{Header: block.Header{Height: 1, Hash: [32]byte{0x02}}}
	require.NoError(t, a.TryAcceptBlock(blk))

	require.NoError(t, a.TryRevert(genesis))
	assert.Equal(t, genesis.Hash, a.Tip().Hash)
}
