// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"os"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func loadAddressLeaves(t *testing.T, hasher TreeHasher) []Digest {
	t.Helper()
	raw, err := os.ReadFile("testdata/addresses.txt")
	require.NoError(t, err)

	var leaves []Digest
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		leaves = append(leaves, hasher.Hash(common.FromHex(line)))
	}
	return leaves
}

func TestProof2D_Addresses(t *testing.T) {
	hasher := NewKeccak256Hasher()
	leaves := loadAddressLeaves(t, hasher)
	require.Len(t, leaves, 167)

	state := BuildTreeState(hasher, leaves)
	require.Equal(t, 8, state.Depth())
	root, err := state.Root()
	require.NoError(t, err)

	proof, err := state.Proof2D([]int{0, 2, 5, 9})
	require.NoError(t, err)
	require.Len(t, proof.Layers, 8)

	computed, err := proof.Root(hasher)
	require.NoError(t, err)
	require.Equal(t, root, computed)
	require.True(t, proof.VerifyLeaves(hasher, root, []int{9, 0}, []Digest{leaves[9], leaves[0]}, len(leaves)))
	require.False(t, proof.VerifyLeaves(hasher, root, []int{9}, []Digest{leaves[8]}, len(leaves)))
	require.False(t, proof.VerifyLeaves(hasher, root, []int{17}, []Digest{leaves[17]}, len(leaves)))
}

func TestProof2D_Layers(t *testing.T) {
	hasher := NewSha256Hasher()
	leaves := hashLeaves(hasher, "a", "b", "c", "d", "e", "f")
	state := BuildTreeState(hasher, leaves)
	layers := state.Layers()

	proof, err := state.Proof2D([]int{3, 4})
	require.NoError(t, err)
	require.Equal(t, [][]IndexedDigest{
		{{2, leaves[2]}, {3, leaves[3]}, {4, leaves[4]}, {5, leaves[5]}},
		{{0, layers[1][0]}},
		{},
	}, normalizeEmpty(proof.Layers))

	// the last leaf of an odd layer has no sibling
	proof, err = state.Proof2D([]int{5})
	require.NoError(t, err)
	require.Equal(t, [][]IndexedDigest{
		{{4, leaves[4]}, {5, leaves[5]}},
		{},
		{{0, layers[2][0]}},
	}, normalizeEmpty(proof.Layers))
	root, _ := state.Root()
	require.True(t, proof.Verify(hasher, root))
}

func normalizeEmpty(layers [][]IndexedDigest) [][]IndexedDigest {
	normalized := make([][]IndexedDigest, len(layers))
	for i := range layers {
		normalized[i] = append([]IndexedDigest{}, layers[i]...)
	}
	return normalized
}

func TestProof2D_SingleLeaf(t *testing.T) {
	hasher := NewSha256Hasher()
	leaves := hashLeaves(hasher, "a")
	proof, err := BuildTreeState(hasher, leaves).Proof2D([]int{0})
	require.NoError(t, err)
	require.Len(t, proof.Layers, 1)
	require.True(t, proof.VerifyLeaves(hasher, leaves[0], []int{0}, leaves, 1))
}

func TestProof2D_Errors(t *testing.T) {
	hasher := NewSha256Hasher()
	leaves := hashLeaves(hasher, "a", "b", "c", "d")
	state := BuildTreeState(hasher, leaves)

	_, err := state.Proof2D([]int{4})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = BuildTreeState(hasher, nil).Proof2D([]int{0})
	require.ErrorIs(t, err, ErrEmptyRoot)

	_, err = (&LayeredProof{}).Root(hasher)
	require.ErrorIs(t, err, ErrInvalidProof)
	_, err = (&LayeredProof{Layers: [][]IndexedDigest{{}}}).Root(hasher)
	require.ErrorIs(t, err, ErrInvalidProof)

	duplicated := &LayeredProof{Layers: [][]IndexedDigest{
		{{0, leaves[0]}, {0, leaves[1]}},
	}}
	_, err = duplicated.Root(hasher)
	require.ErrorIs(t, err, ErrDuplicateIndex)

	negative := &LayeredProof{Layers: [][]IndexedDigest{{{-1, leaves[0]}}}}
	_, err = negative.Root(hasher)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = negative.Bytes()
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = NewLayeredProofFromBytes([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestProof2D_Random(t *testing.T) {
	hasher := NewKeccak256Hasher()
	f := fuzz.NewWithSeed(11).NilChance(0).NumElements(1, 10)

	for n := 1; n <= 50; n++ {
		leaves := randomLeaves(t, hasher, f, n)
		state := BuildTreeState(hasher, leaves)
		root, err := state.Root()
		require.NoError(t, err)

		var picks []uint16
		f.Fuzz(&picks)
		indices := make([]int, len(picks))
		proved := make([]Digest, len(picks))
		for i, pick := range picks {
			indices[i] = int(pick) % n
			proved[i] = leaves[indices[i]]
		}

		proof, err := state.Proof2D(indices)
		require.NoError(t, err)
		require.True(t, proof.VerifyLeaves(hasher, root, indices, proved, n), "leaves %d, indices %v", n, indices)

		b, err := proof.Bytes()
		require.NoError(t, err)
		decoded, err := NewLayeredProofFromBytes(b)
		require.NoError(t, err)
		require.True(t, decoded.VerifyLeaves(hasher, root, indices, proved, n))

		if n > 1 {
			// tampering with any positioned digest changes the root
			decoded.Layers[0][0].Digest[0] ^= 0x01
			require.False(t, decoded.Verify(hasher, root))
		}
	}
}

func TestProof2D_InnerNodeIsNotALeaf(t *testing.T) {
	hasher := NewSha256Hasher()
	leaves := hashLeaves(hasher, "a", "b", "c", "d")
	state := BuildTreeState(hasher, leaves)
	root, err := state.Root()
	require.NoError(t, err)
	ab := Digest(hasher.Hash(leaves[0], leaves[1]))
	cd := Digest(hasher.Hash(leaves[2], leaves[3]))

	// the level-1 nodes reproduce the root on their own
	forged := &LayeredProof{Layers: [][]IndexedDigest{{{0, ab}, {1, cd}}}}
	require.True(t, forged.Verify(hasher, root))
	require.False(t, forged.VerifyLeaves(hasher, root, []int{0}, []Digest{ab}, len(leaves)))

	padded := &LayeredProof{Layers: [][]IndexedDigest{{{0, ab}, {1, cd}}, {}}}
	require.True(t, padded.Verify(hasher, root))
	require.False(t, padded.VerifyLeaves(hasher, root, []int{0}, []Digest{ab}, len(leaves)))

	// claiming a tree of two leaves does not match the height of root's tree
	proof, err := state.Proof2D([]int{0})
	require.NoError(t, err)
	require.True(t, proof.VerifyLeaves(hasher, root, []int{0}, leaves[:1], len(leaves)))
	require.False(t, proof.VerifyLeaves(hasher, root, []int{0}, leaves[:1], 2))
	require.False(t, proof.VerifyLeaves(hasher, root, []int{0}, leaves[:1], 0))
}

func TestProof2D_ExtraEntries(t *testing.T) {
	hasher := NewSha256Hasher()
	leaves := hashLeaves(hasher, "a", "b", "c", "d", "e", "f")
	state := BuildTreeState(hasher, leaves)
	root, err := state.Root()
	require.NoError(t, err)

	proof, err := state.Proof2D([]int{3, 4})
	require.NoError(t, err)
	require.True(t, proof.VerifyLeaves(hasher, root, []int{3, 4}, []Digest{leaves[3], leaves[4]}, len(leaves)))

	// proving fewer leaves than the proof was built for
	require.False(t, proof.VerifyLeaves(hasher, root, []int{3}, []Digest{leaves[3]}, len(leaves)))

	// an extra empty layer
	extra := &LayeredProof{Layers: append(normalizeEmpty(proof.Layers), []IndexedDigest{})}
	require.False(t, extra.VerifyLeaves(hasher, root, []int{3, 4}, []Digest{leaves[3], leaves[4]}, len(leaves)))

	// a missing layer
	missing := &LayeredProof{Layers: normalizeEmpty(proof.Layers)[:2]}
	require.False(t, missing.VerifyLeaves(hasher, root, []int{3, 4}, []Digest{leaves[3], leaves[4]}, len(leaves)))
}

func TestProof2D_TamperEveryByte(t *testing.T) {
	hasher := NewSha256Hasher()
	leaves := hashLeaves(hasher, "a", "b", "c", "d", "e", "f", "g")
	state := BuildTreeState(hasher, leaves)
	root, err := state.Root()
	require.NoError(t, err)

	indices := []int{1, 4, 6}
	proved := []Digest{leaves[1], leaves[4], leaves[6]}
	proof, err := state.Proof2D(indices)
	require.NoError(t, err)
	encoded, err := proof.Bytes()
	require.NoError(t, err)

	for d, layer := range proof.Layers {
		for j := range layer {
			for _, pos := range []int{0, hasher.Size() - 1} {
				tampered, err := NewLayeredProofFromBytes(encoded)
				require.NoError(t, err)
				tampered.Layers[d][j].Digest[pos] ^= 0x01
				require.False(t, tampered.Verify(hasher, root), "layer %d entry %d byte %d", d, j, pos)
				require.False(t, tampered.VerifyLeaves(hasher, root, indices, proved, len(leaves)),
					"layer %d entry %d byte %d", d, j, pos)
			}
		}
	}
}
