package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"succinctattestation/internal/block"
)

func openTestDB(t *testing.T) DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestStoreAndFetchCandidate(t *testing.T) {
	db := openTestDB(t)

	blk := &block.Block{Header: block.Header{Height: 10}}
	blk.Header.Hash[0] = 0xAB

	require.NoError(t, db.StoreCandidateBlock(blk))

	got, ok, err := db.FetchCandidateBlock(blk.Header.Hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), got.Header.Height)

	var missing [32]byte
	missing[0] = 0xFF
	_, ok, err = db.FetchCandidateBlock(missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteCandidateBlocksBelowHeight(t *testing.T) {
	db := openTestDB(t)

	old := &block.Block{Header: block.Header{Height: 5}}
	old.Header.Hash[0] = 1

	fresh := &block.Block{Header: block.Header{Height: 50}}
	fresh.Header.Hash[0] = 2

	require.NoError(t, db.StoreCandidateBlock(old))
	require.NoError(t, db.StoreCandidateBlock(fresh))

	require.NoError(t, db.DeleteCandidateBlocks(10))

	_, ok, _ := db.FetchCandidateBlock(old.Header.Hash)
	assert.False(t, ok)

	_, ok, _ = db.FetchCandidateBlock(fresh.Header.Hash)
	assert.True(t, ok)
}

func TestStoreBlockAndFetchByHeightAndHeader(t *testing.T) {
	db := openTestDB(t)

	blk := &block.Block{Header: block.Header{Height: 1}}
	blk.Header.Hash[0] = 0x11

	require.NoError(t, db.StoreBlock(blk))

	byHeight, ok, err := db.FetchBlockByHeight(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blk.Header.Hash, byHeight.Header.Hash)

	hdr, ok, err := db.FetchBlockHeader(blk.Header.Hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), hdr.Height)

	exists, err := db.GetBlockExists(blk.Header.Hash)
	require.NoError(t, err)
	assert.True(t, exists)
}
