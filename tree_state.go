// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

const (
	// defaultParallelThreshold is the minimum number of parent digests in a
	// layer before the builder spreads the hashing over its worker pool.
	defaultParallelThreshold = 4096
)

// TreeState holds every layer of one tree version. Layer 0 stores the
// leaves and the last layer the root. A TreeState is never mutated after it
// has been built, so it can be shared between the committed state and the
// history.
type TreeState struct {
	layers [][]Digest
}

// BuildTreeState builds the layers for leaves sequentially.
func BuildTreeState(hasher TreeHasher, leaves []Digest) *TreeState {
	b := &builder{hasher: hasher}
	return b.build(leaves)
}

type builder struct {
	hasher    TreeHasher
	pool      *ants.Pool
	threshold int
}

func (b *builder) build(leaves []Digest) *TreeState {
	return b.buildLayers(copyDigests(leaves))
}

// buildLayers uses layer as layer 0 without copying it.
func (b *builder) buildLayers(layer []Digest) *TreeState {
	if len(layer) == 0 {
		return &TreeState{}
	}
	layers := [][]Digest{layer}
	for len(layer) > 1 {
		layer = b.parents(layer)
		layers = append(layers, layer)
	}
	return &TreeState{layers: layers}
}

// parents pairs adjacent digests of layer. A trailing digest without a
// partner is carried into the next layer unchanged.
func (b *builder) parents(layer []Digest) []Digest {
	next := make([]Digest, layerWidth(len(layer)))
	if b.pool == nil || len(next) < b.threshold {
		b.hashRange(layer, next, 0, len(next))
		return next
	}

	workers := b.pool.Cap()
	if workers <= 0 {
		// unbounded pool
		workers = runtime.NumCPU()
	}
	chunk := (len(next) + workers - 1) / workers
	if floor := b.threshold / 4; chunk < floor {
		chunk = floor
	}
	if chunk < 1 {
		chunk = 1
	}
	var wg sync.WaitGroup
	for start := 0; start < len(next); start += chunk {
		end := start + chunk
		if end > len(next) {
			end = len(next)
		}
		wg.Add(1)
		from, to := start, end
		err := b.pool.Submit(func() {
			defer wg.Done()
			b.hashRange(layer, next, from, to)
		})
		if err != nil {
			wg.Done()
			b.hashRange(layer, next, from, to)
		}
	}
	wg.Wait()
	return next
}

// layerWidth returns the number of digests in the layer above a layer of
// width n.
func layerWidth(n int) int {
	return n/2 + n%2
}

// treeDepth returns the number of layers above the leaves of a tree with
// leafCount leaves.
func treeDepth(leafCount int) int {
	depth := 0
	for width := leafCount; width > 1; width = layerWidth(width) {
		depth++
	}
	return depth
}

func (b *builder) hashRange(layer, next []Digest, from, to int) {
	for i := from; i < to; i++ {
		left := 2 * i
		if left+1 == len(layer) {
			next[i] = layer[left]
			continue
		}
		next[i] = b.hasher.Hash(layer[left], layer[left+1])
	}
}

// Root returns the root digest, or ErrEmptyRoot if the state has no leaves.
func (s *TreeState) Root() (Digest, error) {
	if s.IsEmpty() {
		return nil, ErrEmptyRoot
	}
	return copyDigest(s.layers[len(s.layers)-1][0]), nil
}

func (s *TreeState) IsEmpty() bool {
	return len(s.layers) == 0
}

// Depth returns the number of layers above the leaves.
func (s *TreeState) Depth() int {
	if len(s.layers) == 0 {
		return 0
	}
	return len(s.layers) - 1
}

func (s *TreeState) LeafCount() int {
	if len(s.layers) == 0 {
		return 0
	}
	return len(s.layers[0])
}

func (s *TreeState) Leaves() []Digest {
	if len(s.layers) == 0 {
		return nil
	}
	return copyDigests(s.layers[0])
}

func (s *TreeState) Layers() [][]Digest {
	layers := make([][]Digest, len(s.layers))
	for i := range s.layers {
		layers[i] = copyDigests(s.layers[i])
	}
	return layers
}

// leaves returns layer 0 without copying; callers must not modify it.
func (s *TreeState) leaves() []Digest {
	if len(s.layers) == 0 {
		return nil
	}
	return s.layers[0]
}
