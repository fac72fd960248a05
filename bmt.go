// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"sync"
	"time"

	"github.com/bnb-chain/zkbnb-bmt/metrics"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const defaultUncommittedCacheSize = 8

var _ MerkleTree = (*BinaryMerkleTree)(nil)

// NewBinaryMerkleTree creates an empty tree.
func NewBinaryMerkleTree(hasher TreeHasher, opts ...Option) (*BinaryMerkleTree, error) {
	return NewBinaryMerkleTreeFromLeaves(hasher, nil, opts...)
}

// NewBinaryMerkleTreeFromLeaves creates a tree whose initial committed state
// holds leaves. The history starts empty, so rolling back never goes below
// this state.
func NewBinaryMerkleTreeFromLeaves(hasher TreeHasher, leaves []Digest, opts ...Option) (*BinaryMerkleTree, error) {
	if hasher == nil {
		return nil, ErrNilHasher
	}
	tree := &BinaryMerkleTree{
		hasher: hasher,
		builder: &builder{
			hasher:    hasher,
			threshold: defaultParallelThreshold,
		},
		cacheSize: defaultUncommittedCacheSize,
		logger:    log.New("module", "bmt"),
	}
	for _, opt := range opts {
		opt(tree)
	}
	if tree.cacheSize > 0 {
		cache, err := lru.New[cacheKey, *TreeState](tree.cacheSize)
		if err != nil {
			return nil, err
		}
		tree.cache = cache
	}
	if err := tree.checkDigests(leaves); err != nil {
		return nil, err
	}
	tree.committed = tree.build(leaves)
	tree.reportMetrics()
	return tree, nil
}

type cacheKey struct {
	generation uint64
	staged     int
}

// BinaryMerkleTree is a binary Merkle tree with staged appends and a
// commit history that can be rolled back.
type BinaryMerkleTree struct {
	lock      sync.RWMutex
	hasher    TreeHasher
	builder   *builder
	committed *TreeState   // The current committed state
	history   []*TreeState // Previously committed states, most recent last
	staged    []Digest     // Leaves appended since the last commit

	// generation changes whenever the committed state or the staged leaves
	// change other than by appending, so (generation, len(staged)) names one
	// uncommitted leaf sequence.
	generation uint64
	cacheSize  int
	cache      *lru.Cache[cacheKey, *TreeState]

	metrics metrics.Metrics
	logger  log.Logger
}

func (tree *BinaryMerkleTree) Append(leaves []Digest) error {
	if err := tree.checkDigests(leaves); err != nil {
		return err
	}
	tree.lock.Lock()
	defer tree.lock.Unlock()

	tree.staged = append(tree.staged, copyDigests(leaves)...)
	if tree.metrics != nil {
		tree.metrics.StagedCount(uint64(len(tree.staged)))
	}
	return nil
}

// Insert stages leaf after every committed and staged leaf.
func (tree *BinaryMerkleTree) Insert(leaf Digest) error {
	return tree.Append([]Digest{leaf})
}

// AbortUncommitted drops every staged leaf.
func (tree *BinaryMerkleTree) AbortUncommitted() {
	tree.lock.Lock()
	defer tree.lock.Unlock()

	if len(tree.staged) == 0 {
		return
	}
	tree.logger.Debug("abort uncommitted leaves", "staged", len(tree.staged))
	tree.staged = nil
	tree.generation++
	if tree.metrics != nil {
		tree.metrics.StagedCount(0)
	}
}

// Commit promotes the staged leaves into the committed state and pushes the
// previous committed state onto the history. Without staged leaves it does
// nothing and returns the current version.
func (tree *BinaryMerkleTree) Commit() Version {
	tree.lock.Lock()
	defer tree.lock.Unlock()

	if len(tree.staged) == 0 {
		return tree.latestVersion()
	}
	state := tree.uncommittedState()
	added := len(tree.staged)

	tree.history = append(tree.history, tree.committed)
	tree.committed = state
	tree.staged = nil
	tree.generation++

	version := tree.latestVersion()
	tree.logger.Debug("commit", "version", version, "leaves", state.LeafCount(), "added", added)
	if tree.metrics != nil {
		tree.metrics.CommitNum(added)
	}
	tree.reportMetrics()
	return version
}

// Rollback restores the most recently pushed history entry. It returns
// ErrNothingToRollback, leaving the tree untouched, when the history is
// empty. Staged leaves are kept.
func (tree *BinaryMerkleTree) Rollback() error {
	tree.lock.Lock()
	defer tree.lock.Unlock()

	if len(tree.history) == 0 {
		return ErrNothingToRollback
	}
	tree.rollback(1)
	return nil
}

// RollbackTo unwinds the history until the latest version equals version.
func (tree *BinaryMerkleTree) RollbackTo(version Version) error {
	tree.lock.Lock()
	defer tree.lock.Unlock()

	latest := tree.latestVersion()
	if version > latest {
		return errors.Wrapf(ErrVersionTooHigh, "version %d, latest %d", version, latest)
	}
	if version == latest {
		return nil
	}
	tree.rollback(int(latest - version))
	return nil
}

func (tree *BinaryMerkleTree) rollback(n int) {
	top := len(tree.history) - n
	tree.committed = tree.history[top]
	for i := top; i < len(tree.history); i++ {
		tree.history[i] = nil
	}
	tree.history = tree.history[:top]
	tree.generation++

	tree.logger.Debug("rollback", "version", tree.latestVersion(), "discarded", n,
		"leaves", tree.committed.LeafCount())
	if tree.metrics != nil {
		tree.metrics.RollbackNum(n)
	}
	tree.reportMetrics()
}

func (tree *BinaryMerkleTree) LatestVersion() Version {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.latestVersion()
}

func (tree *BinaryMerkleTree) latestVersion() Version {
	return Version(len(tree.history))
}

func (tree *BinaryMerkleTree) Root() (Digest, error) {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.Root()
}

func (tree *BinaryMerkleTree) RootHex() (string, error) {
	root, err := tree.Root()
	if err != nil {
		return "", err
	}
	return root.Hex(), nil
}

// UncommittedRoot returns the root the tree would have after the next
// commit, or ErrEmptyRoot when nothing is staged.
func (tree *BinaryMerkleTree) UncommittedRoot() (Digest, error) {
	tree.lock.RLock()
	defer tree.lock.RUnlock()

	if len(tree.staged) == 0 {
		return nil, ErrEmptyRoot
	}
	return tree.uncommittedState().Root()
}

func (tree *BinaryMerkleTree) UncommittedRootHex() (string, error) {
	root, err := tree.UncommittedRoot()
	if err != nil {
		return "", err
	}
	return root.Hex(), nil
}

func (tree *BinaryMerkleTree) IsEmpty() bool {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.IsEmpty()
}

func (tree *BinaryMerkleTree) Depth() int {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.Depth()
}

func (tree *BinaryMerkleTree) LeafCount() int {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.LeafCount()
}

func (tree *BinaryMerkleTree) StagedCount() int {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return len(tree.staged)
}

// Leaves returns a copy of the committed leaves.
func (tree *BinaryMerkleTree) Leaves() []Digest {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.Leaves()
}

func (tree *BinaryMerkleTree) Layers() [][]Digest {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.Layers()
}

// Proof returns a flat inclusion proof against the committed root.
func (tree *BinaryMerkleTree) Proof(indices []int) (*Proof, error) {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.Proof(indices)
}

// Proof2D returns a layered inclusion proof against the committed root.
func (tree *BinaryMerkleTree) Proof2D(indices []int) (*LayeredProof, error) {
	tree.lock.RLock()
	defer tree.lock.RUnlock()
	return tree.committed.Proof2D(indices)
}

// uncommittedState builds committed ++ staged, memoised by generation and
// staged count. Callers hold the lock and staged is non-empty.
func (tree *BinaryMerkleTree) uncommittedState() *TreeState {
	key := cacheKey{generation: tree.generation, staged: len(tree.staged)}
	if tree.cache != nil {
		if state, ok := tree.cache.Get(key); ok {
			return state
		}
	}

	committed := tree.committed.leaves()
	leaves := make([]Digest, 0, len(committed)+len(tree.staged))
	leaves = append(leaves, committed...)
	leaves = append(leaves, tree.staged...)
	state := tree.buildOwned(leaves)

	if tree.cache != nil {
		tree.cache.Add(key, state)
	}
	return state
}

func (tree *BinaryMerkleTree) build(leaves []Digest) *TreeState {
	return tree.buildOwned(copyDigests(leaves))
}

// buildOwned takes ownership of leaves as layer 0.
func (tree *BinaryMerkleTree) buildOwned(leaves []Digest) *TreeState {
	start := time.Now()
	state := tree.builder.buildLayers(leaves)
	if tree.metrics != nil {
		tree.metrics.BuildDuration(time.Since(start))
	}
	return state
}

func (tree *BinaryMerkleTree) checkDigests(leaves []Digest) error {
	for i := range leaves {
		if len(leaves[i]) != tree.hasher.Size() {
			return errors.Wrapf(ErrInvalidDigestSize, "leaf %d has %d bytes, want %d",
				i, len(leaves[i]), tree.hasher.Size())
		}
	}
	return nil
}

func (tree *BinaryMerkleTree) reportMetrics() {
	if tree.metrics == nil {
		return
	}
	tree.metrics.Version(uint64(tree.latestVersion()))
	tree.metrics.LeafCount(uint64(tree.committed.LeafCount()))
	tree.metrics.StagedCount(uint64(len(tree.staged)))
	tree.metrics.Depth(uint64(tree.committed.Depth()))
}
