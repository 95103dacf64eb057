// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package database is the persistent Candidate/Ledger collaborator
// (§6.2). Adapted from the teacher's pkg/core/chain/database.go — same
// goleveldb-backed, prefix-keyed single-file store, same "writes are
// transactional, the core only ever holds the lock for one call" shape
// — generalized from the teacher's single block/header/tx layout to the
// two column families (Candidate, Ledger) §3 and §6.2 describe, and
// switched on snappy block compression the way a production dusk node
// configures goleveldb.
package database

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"succinctattestation/internal/block"
)

var (
	prefixCandidate = []byte("CAND:")
	prefixHeader    = []byte("HEADER:")
	prefixHeight    = []byte("HEIGHT:")
)

// DB is the candidate/ledger collaborator contract the consensus core
// and chain FSM call through (§6.2). All operations are transactional
// at the call boundary; the core acquires the lock only for the
// duration of the call.
type DB interface {
	StoreCandidateBlock(blk *block.Block) error
	FetchCandidateBlock(hash [32]byte) (*block.Block, bool, error)
	DeleteCandidateBlocks(roundLessThan uint64) error

	StoreBlock(blk *block.Block) error
	FetchBlockByHeight(height uint64) (*block.Block, bool, error)
	FetchBlockHeader(hash [32]byte) (*block.Header, bool, error)
	GetBlockExists(hash [32]byte) (bool, error)

	Close() error
}

type ldb struct {
	storage *leveldb.DB
}

// Open returns a DB backed by a goleveldb instance rooted at path,
// recovering from corruption the way the teacher's NewDatabase does.
func Open(path string) (DB, error) {
	o := &opt.Options{Compression: opt.SnappyCompression}

	storage, err := leveldb.OpenFile(path, o)
	if corrupted, ok := err.(*errors.ErrCorrupted); ok {
		storage, err = leveldb.RecoverFile(path, o)
		_ = corrupted
	}

	if _, accessDenied := err.(*os.PathError); accessDenied {
		return nil, fmt.Errorf("database: could not open or create db at %q", path)
	}

	if err != nil {
		return nil, err
	}

	return &ldb{storage: storage}, nil
}

func init() {
	gob.Register(block.Block{})
	gob.Register(block.Header{})
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func candidateKey(hash [32]byte) []byte {
	return append(append([]byte(nil), prefixCandidate...), hash[:]...)
}

func headerKey(hash [32]byte) []byte {
	return append(append([]byte(nil), prefixHeader...), hash[:]...)
}

func heightKey(height uint64) []byte {
	k := append([]byte(nil), prefixHeight...)

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(height >> (8 * i))
	}

	return append(k, buf[:]...)
}

func (l *ldb) StoreCandidateBlock(blk *block.Block) error {
	val, err := encode(blk)
	if err != nil {
		return err
	}

	return l.storage.Put(candidateKey(blk.Header.Hash), val, nil)
}

func (l *ldb) FetchCandidateBlock(hash [32]byte) (*block.Block, bool, error) {
	val, err := l.storage.Get(candidateKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var blk block.Block
	if err := decode(val, &blk); err != nil {
		return nil, false, err
	}

	return &blk, true, nil
}

// DeleteCandidateBlocks removes every candidate with Height <
// roundLessThan, implementing the Candidate CF's "persist until
// superseded or finalized" lifecycle (§3 Lifecycles).
func (l *ldb) DeleteCandidateBlocks(roundLessThan uint64) error {
	iter := l.storage.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)

	for iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefixCandidate) {
			continue
		}

		var blk block.Block
		if err := decode(iter.Value(), &blk); err != nil {
			continue
		}

		if blk.Header.Height < roundLessThan {
			batch.Delete(append([]byte(nil), key...))
		}
	}

	if err := iter.Error(); err != nil {
		return err
	}

	return l.storage.Write(batch, nil)
}

func (l *ldb) StoreBlock(blk *block.Block) error {
	hdrVal, err := encode(blk.Header)
	if err != nil {
		return err
	}

	blockVal, err := encode(blk)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(headerKey(blk.Header.Hash), hdrVal)
	batch.Put(heightKey(blk.Header.Height), blockVal)

	return l.storage.Write(batch, nil)
}

func (l *ldb) FetchBlockByHeight(height uint64) (*block.Block, bool, error) {
	val, err := l.storage.Get(heightKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var blk block.Block
	if err := decode(val, &blk); err != nil {
		return nil, false, err
	}

	return &blk, true, nil
}

func (l *ldb) FetchBlockHeader(hash [32]byte) (*block.Header, bool, error) {
	val, err := l.storage.Get(headerKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var hdr block.Header
	if err := decode(val, &hdr); err != nil {
		return nil, false, err
	}

	return &hdr, true, nil
}

func (l *ldb) GetBlockExists(hash [32]byte) (bool, error) {
	return l.storage.Has(headerKey(hash), nil)
}

func (l *ldb) Close() error {
	return l.storage.Close()
}
