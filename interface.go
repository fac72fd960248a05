// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// Version is the number of commits currently held in the history.
	Version uint64

	// Digest is a fixed-width hash value produced by a TreeHasher.
	Digest []byte

	// IndexedDigest is a digest tagged with its position inside a layer.
	IndexedDigest struct {
		Index  int
		Digest Digest
	}

	// TreeHasher hashes the concatenation of its inputs into a digest of
	// Size() bytes. Parents are computed as Hash(left, right).
	TreeHasher interface {
		Hash(inputs ...[]byte) []byte
		Size() int
	}

	MerkleTree interface {
		Append(leaves []Digest) error
		Insert(leaf Digest) error
		AbortUncommitted()
		Commit() Version
		Rollback() error
		RollbackTo(version Version) error
		LatestVersion() Version

		Root() (Digest, error)
		RootHex() (string, error)
		UncommittedRoot() (Digest, error)
		UncommittedRootHex() (string, error)
		IsEmpty() bool
		Depth() int
		LeafCount() int
		StagedCount() int
		Leaves() []Digest
		Layers() [][]Digest

		Proof(indices []int) (*Proof, error)
		Proof2D(indices []int) (*LayeredProof, error)
	}
)

// Hex returns the lower-case hex encoding of the digest without a prefix.
func (d Digest) Hex() string {
	return common.Bytes2Hex(d)
}

func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d, other)
}

func copyDigest(d Digest) Digest {
	if d == nil {
		return nil
	}
	copied := make(Digest, len(d))
	copy(copied, d)
	return copied
}

func copyDigests(digests []Digest) []Digest {
	copied := make([]Digest, len(digests))
	for i := range digests {
		copied[i] = copyDigest(digests[i])
	}
	return copied
}
