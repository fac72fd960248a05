// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"sort"

	"github.com/pkg/errors"
)

// Proof is a flat multi-leaf inclusion proof: the sibling digests needed to
// recompute the root, ordered layer by layer and by ascending index within a
// layer.
type Proof struct {
	hashes []Digest
}

func NewProof(hashes []Digest) *Proof {
	return &Proof{hashes: copyDigests(hashes)}
}

// NewProofFromBytes splits the concatenated form produced by Proof.Bytes
// into digests of size bytes.
func NewProofFromBytes(b []byte, size int) (*Proof, error) {
	if size <= 0 || len(b)%size != 0 {
		return nil, errors.Wrapf(ErrInvalidProofSize, "got %d bytes for digest size %d", len(b), size)
	}
	hashes := make([]Digest, 0, len(b)/size)
	for i := 0; i < len(b); i += size {
		hashes = append(hashes, copyDigest(b[i:i+size]))
	}
	return &Proof{hashes: hashes}, nil
}

func (p *Proof) Hashes() []Digest {
	return copyDigests(p.hashes)
}

func (p *Proof) HashesHex() []string {
	hexes := make([]string, len(p.hashes))
	for i := range p.hashes {
		hexes[i] = p.hashes[i].Hex()
	}
	return hexes
}

func (p *Proof) Bytes() []byte {
	var size int
	for i := range p.hashes {
		size += len(p.hashes[i])
	}
	buf := make([]byte, 0, size)
	for i := range p.hashes {
		buf = append(buf, p.hashes[i]...)
	}
	return buf
}

// Proof collects the sibling digests required to prove the leaves at indices.
func (s *TreeState) Proof(indices []int) (*Proof, error) {
	if s.IsEmpty() {
		return nil, ErrEmptyRoot
	}
	known, err := normalizeIndices(indices, s.LeafCount())
	if err != nil {
		return nil, err
	}

	proof := &Proof{}
	for depth := 0; depth < len(s.layers)-1; depth++ {
		layer := s.layers[depth]
		for i := 0; i < len(known); i++ {
			index := known[i]
			if index%2 == 1 {
				proof.hashes = append(proof.hashes, copyDigest(layer[index-1]))
				continue
			}
			if index+1 >= len(layer) {
				// carried to the next layer without a partner
				continue
			}
			if i+1 < len(known) && known[i+1] == index+1 {
				i++
				continue
			}
			proof.hashes = append(proof.hashes, copyDigest(layer[index+1]))
		}
		known = parentIndices(known)
	}
	return proof, nil
}

// Root recomputes the root of a tree with leafCount leaves from the claimed
// leaves at indices and the proof hashes.
func (p *Proof) Root(hasher TreeHasher, indices []int, leaves []Digest, leafCount int) (Digest, error) {
	if leafCount <= 0 {
		return nil, ErrEmptyRoot
	}
	if len(indices) != len(leaves) {
		return nil, errors.Wrapf(ErrLeafCountMismatch, "%d indices, %d leaves", len(indices), len(leaves))
	}
	if len(indices) == 0 {
		return nil, errors.Wrap(ErrInvalidProof, "no leaves to prove")
	}
	current, err := sortLeaves(indices, leaves, leafCount)
	if err != nil {
		return nil, err
	}

	hashes := p.hashes
	next := func() (Digest, error) {
		if len(hashes) == 0 {
			return nil, errors.Wrap(ErrInvalidProof, "not enough proof hashes")
		}
		h := hashes[0]
		hashes = hashes[1:]
		return h, nil
	}

	for layerLen := leafCount; layerLen > 1; layerLen = layerWidth(layerLen) {
		parents := make([]IndexedDigest, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i++ {
			node := current[i]
			var parent Digest
			switch {
			case node.Index%2 == 1:
				sibling, err := next()
				if err != nil {
					return nil, err
				}
				parent = hasher.Hash(sibling, node.Digest)
			case node.Index+1 >= layerLen:
				parent = node.Digest
			case i+1 < len(current) && current[i+1].Index == node.Index+1:
				parent = hasher.Hash(node.Digest, current[i+1].Digest)
				i++
			default:
				sibling, err := next()
				if err != nil {
					return nil, err
				}
				parent = hasher.Hash(node.Digest, sibling)
			}
			parents = append(parents, IndexedDigest{Index: node.Index / 2, Digest: parent})
		}
		current = parents
	}
	if len(hashes) != 0 {
		return nil, errors.Wrapf(ErrInvalidProof, "%d unused proof hashes", len(hashes))
	}
	return copyDigest(current[0].Digest), nil
}

// Verify reports whether the proof, combined with the claimed leaves,
// reproduces root.
func (p *Proof) Verify(hasher TreeHasher, root Digest, indices []int, leaves []Digest, leafCount int) bool {
	computed, err := p.Root(hasher, indices, leaves, leafCount)
	if err != nil {
		return false
	}
	return computed.Equal(root)
}

// normalizeIndices returns indices sorted and de-duplicated, failing on any
// index outside [0, leafCount).
func normalizeIndices(indices []int, leafCount int) ([]int, error) {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)

	unique := sorted[:0]
	for i, index := range sorted {
		if index < 0 || index >= leafCount {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, leaf count %d", index, leafCount)
		}
		if i > 0 && index == sorted[i-1] {
			continue
		}
		unique = append(unique, index)
	}
	return unique, nil
}

func parentIndices(indices []int) []int {
	parents := make([]int, 0, len(indices))
	for _, index := range indices {
		parent := index / 2
		if len(parents) > 0 && parents[len(parents)-1] == parent {
			continue
		}
		parents = append(parents, parent)
	}
	return parents
}

// sortLeaves pairs indices with leaves ordered by index. Repeating an index
// is allowed only with the same digest.
func sortLeaves(indices []int, leaves []Digest, leafCount int) ([]IndexedDigest, error) {
	pairs := make([]IndexedDigest, len(indices))
	for i := range indices {
		if indices[i] < 0 || indices[i] >= leafCount {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, leaf count %d", indices[i], leafCount)
		}
		pairs[i] = IndexedDigest{Index: indices[i], Digest: leaves[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Index < pairs[j].Index })

	unique := pairs[:0]
	for i, pair := range pairs {
		if i > 0 && pair.Index == pairs[i-1].Index {
			if !pair.Digest.Equal(pairs[i-1].Digest) {
				return nil, errors.Wrapf(ErrDuplicateIndex, "conflicting leaves at index %d", pair.Index)
			}
			continue
		}
		unique = append(unique, pair)
	}
	return unique, nil
}
