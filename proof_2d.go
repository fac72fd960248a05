// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// LayeredProof carries, for every layer below the root, the positioned
// digests a verifier needs to rebuild the tree bottom-up without knowing
// the proved indices in advance. Layer 0 contains the proved leaves
// together with their siblings.
type LayeredProof struct {
	Layers [][]IndexedDigest
}

// Proof2D builds a LayeredProof for the leaves at indices.
func (s *TreeState) Proof2D(indices []int) (*LayeredProof, error) {
	if s.IsEmpty() {
		return nil, ErrEmptyRoot
	}
	known, err := normalizeIndices(indices, s.LeafCount())
	if err != nil {
		return nil, err
	}

	positions := layeredIndices(known, s.LeafCount())
	proof := &LayeredProof{Layers: make([][]IndexedDigest, len(positions))}
	for d, layer := range positions {
		nodes := make([]IndexedDigest, len(layer))
		for j, index := range layer {
			nodes[j] = IndexedDigest{Index: index, Digest: copyDigest(s.layers[d][index])}
		}
		proof.Layers[d] = nodes
	}
	return proof, nil
}

// layeredIndices returns, for every layer below the root of a tree with
// leafCount leaves, the sorted positions a LayeredProof for the sorted,
// unique indices known carries. Layer 0 holds known and their siblings,
// higher layers the siblings not computable from the layer below. A single
// leaf still gets one layer.
func layeredIndices(known []int, leafCount int) [][]int {
	depth := treeDepth(leafCount)
	if depth == 0 {
		depth = 1
	}
	layers := make([][]int, 0, depth)
	width := leafCount
	for d := 0; d < depth; d++ {
		set := make(map[int]struct{}, len(known))
		for _, index := range known {
			set[index] = struct{}{}
		}

		positions := make([]int, 0, 2*len(known))
		for _, index := range known {
			if d == 0 {
				positions = append(positions, index)
			}
			sibling := index ^ 1
			if sibling >= width {
				continue
			}
			if _, ok := set[sibling]; ok {
				continue
			}
			positions = append(positions, sibling)
		}
		sort.Ints(positions)
		layers = append(layers, positions)
		known = parentIndices(known)
		width = layerWidth(width)
	}
	return layers
}

// Root recomputes the root from the positioned digests alone. Adjacent
// entries (2k, 2k+1) are hashed into k, any other entry is carried to i/2.
func (p *LayeredProof) Root(hasher TreeHasher) (Digest, error) {
	if len(p.Layers) == 0 {
		return nil, errors.Wrap(ErrInvalidProof, "no layers")
	}

	var carried []IndexedDigest
	for _, layer := range p.Layers {
		current := make([]IndexedDigest, 0, len(carried)+len(layer))
		current = append(current, carried...)
		current = append(current, layer...)
		var err error
		if carried, err = combineLayer(hasher, current); err != nil {
			return nil, err
		}
	}
	for len(carried) > 1 {
		var err error
		if carried, err = combineLayer(hasher, carried); err != nil {
			return nil, err
		}
	}
	if len(carried) == 0 {
		return nil, errors.Wrap(ErrInvalidProof, "no digests")
	}
	return copyDigest(carried[0].Digest), nil
}

func (p *LayeredProof) Verify(hasher TreeHasher, root Digest) bool {
	computed, err := p.Root(hasher)
	if err != nil {
		return false
	}
	return computed.Equal(root)
}

// VerifyLeaves checks that the proof has exactly the layout Proof2D
// produces for indices in a tree of leafCount leaves, that the claimed leaves
// sit at their positions in the first layer and that the proof reproduces
// root. Unlike Verify it rejects inner nodes passed off as leaves.
func (p *LayeredProof) VerifyLeaves(hasher TreeHasher, root Digest, indices []int, leaves []Digest, leafCount int) bool {
	if len(indices) != len(leaves) || len(indices) == 0 || leafCount <= 0 {
		return false
	}
	claimed, err := sortLeaves(indices, leaves, leafCount)
	if err != nil {
		return false
	}
	known := make([]int, len(claimed))
	for i := range claimed {
		known[i] = claimed[i].Index
	}

	expected := layeredIndices(known, leafCount)
	if len(expected) != len(p.Layers) {
		return false
	}
	for d, positions := range expected {
		layer := p.Layers[d]
		if len(layer) != len(positions) {
			return false
		}
		for j := range positions {
			if layer[j].Index != positions[j] || len(layer[j].Digest) != hasher.Size() {
				return false
			}
		}
	}

	first := p.Layers[0]
	for _, leaf := range claimed {
		// every claimed index is in layer 0 after the layout check
		pos := sort.Search(len(first), func(i int) bool { return first[i].Index >= leaf.Index })
		if !first[pos].Digest.Equal(leaf.Digest) {
			return false
		}
	}
	return p.Verify(hasher, root)
}

func combineLayer(hasher TreeHasher, current []IndexedDigest) ([]IndexedDigest, error) {
	sort.SliceStable(current, func(i, j int) bool { return current[i].Index < current[j].Index })

	next := make([]IndexedDigest, 0, (len(current)+1)/2)
	for i := 0; i < len(current); i++ {
		node := current[i]
		if i+1 < len(current) && current[i+1].Index == node.Index {
			return nil, errors.Wrapf(ErrDuplicateIndex, "index %d", node.Index)
		}
		if node.Index < 0 {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", node.Index)
		}
		if node.Index%2 == 0 && i+1 < len(current) && current[i+1].Index == node.Index+1 {
			next = append(next, IndexedDigest{
				Index:  node.Index / 2,
				Digest: hasher.Hash(node.Digest, current[i+1].Digest),
			})
			i++
			continue
		}
		next = append(next, IndexedDigest{Index: node.Index / 2, Digest: node.Digest})
	}
	return next, nil
}

type storageIndexedDigest struct {
	Index  uint64
	Digest []byte
}

type storageLayeredProof struct {
	Layers [][]storageIndexedDigest
}

// Bytes returns the RLP encoding of the proof.
func (p *LayeredProof) Bytes() ([]byte, error) {
	stored := storageLayeredProof{Layers: make([][]storageIndexedDigest, len(p.Layers))}
	for i, layer := range p.Layers {
		stored.Layers[i] = make([]storageIndexedDigest, len(layer))
		for j, node := range layer {
			if node.Index < 0 {
				return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", node.Index)
			}
			stored.Layers[i][j] = storageIndexedDigest{Index: uint64(node.Index), Digest: node.Digest}
		}
	}
	return rlp.EncodeToBytes(&stored)
}

func NewLayeredProofFromBytes(b []byte) (*LayeredProof, error) {
	stored := &storageLayeredProof{}
	if err := rlp.DecodeBytes(b, stored); err != nil {
		return nil, errors.Wrap(ErrInvalidProof, err.Error())
	}
	proof := &LayeredProof{Layers: make([][]IndexedDigest, len(stored.Layers))}
	for i, layer := range stored.Layers {
		proof.Layers[i] = make([]IndexedDigest, len(layer))
		for j, node := range layer {
			proof.Layers[i][j] = IndexedDigest{Index: int(node.Index), Digest: node.Digest}
		}
	}
	return proof, nil
}
