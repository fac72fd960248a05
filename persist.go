// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"encoding/binary"

	"github.com/bnb-chain/zkbnb-bmt/database"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

const (
	treeRecordKey string = "tree"
	leafKeyPrefix string = "leaf/"
)

// StorageTree is the persisted description of a tree. Every history entry
// is a prefix of the committed leaves, so only its size is stored.
type StorageTree struct {
	LeafCount uint64
	Versions  []uint64 // Leaf count of each history entry, oldest first
}

func leafKey(index uint64) []byte {
	key := make([]byte, len(leafKeyPrefix)+8)
	copy(key, leafKeyPrefix)
	binary.BigEndian.PutUint64(key[len(leafKeyPrefix):], index)
	return key
}

func recoveryStorageTree(db database.TreeDB) (*StorageTree, error) {
	buf, err := db.Get([]byte(treeRecordKey))
	if err != nil {
		return nil, err
	}
	record := &StorageTree{}
	if err := rlp.DecodeBytes(buf, record); err != nil {
		return nil, errors.Wrap(ErrVersionMismatched, err.Error())
	}
	return record, nil
}

// Save writes the committed leaves and the history sizes to db in a single
// batch. Staged leaves are not saved.
func (tree *BinaryMerkleTree) Save(db database.TreeDB) error {
	tree.lock.RLock()
	defer tree.lock.RUnlock()

	var previousCount uint64
	previous, err := recoveryStorageTree(db)
	switch {
	case err == nil:
		previousCount = previous.LeafCount
	case errors.Is(err, database.ErrDatabaseNotFound):
	default:
		return err
	}

	leaves := tree.committed.leaves()
	batch := db.NewBatch()
	for i := range leaves {
		if err := batch.Set(leafKey(uint64(i)), leaves[i]); err != nil {
			return err
		}
	}
	for i := uint64(len(leaves)); i < previousCount; i++ {
		if err := batch.Delete(leafKey(i)); err != nil {
			return err
		}
	}

	record := &StorageTree{
		LeafCount: uint64(len(leaves)),
		Versions:  make([]uint64, len(tree.history)),
	}
	for i, state := range tree.history {
		record.Versions[i] = uint64(state.LeafCount())
	}
	buf, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := batch.Set([]byte(treeRecordKey), buf); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	tree.logger.Debug("saved tree", "version", tree.latestVersion(), "leaves", len(leaves))
	return nil
}

// LoadBinaryMerkleTree restores a tree written by Save, including its whole
// history. An empty database yields an empty tree.
func LoadBinaryMerkleTree(db database.TreeDB, hasher TreeHasher, opts ...Option) (*BinaryMerkleTree, error) {
	record, err := recoveryStorageTree(db)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return NewBinaryMerkleTree(hasher, opts...)
	}
	if err != nil {
		return nil, err
	}
	for i, size := range record.Versions {
		if size >= record.LeafCount || (i > 0 && size <= record.Versions[i-1]) {
			return nil, errors.Wrapf(ErrVersionMismatched, "history entry %d has %d leaves, committed %d",
				i, size, record.LeafCount)
		}
	}

	leaves := make([]Digest, record.LeafCount)
	for i := range leaves {
		leaf, err := db.Get(leafKey(uint64(i)))
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, errors.Wrapf(ErrVersionMismatched, "leaf %d is missing", i)
		}
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}

	tree, err := NewBinaryMerkleTreeFromLeaves(hasher, leaves, opts...)
	if err != nil {
		return nil, err
	}
	tree.history = make([]*TreeState, len(record.Versions))
	for i, size := range record.Versions {
		prefix := make([]Digest, size)
		copy(prefix, tree.committed.leaves())
		tree.history[i] = tree.buildOwned(prefix)
	}
	tree.reportMetrics()
	tree.logger.Debug("loaded tree", "version", tree.latestVersion(), "leaves", len(leaves))
	return tree, nil
}
