// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"crypto/sha256"
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

var _ TreeHasher = (*Hasher)(nil)

// NewHasherPool returns a Hasher that keeps a pool of hash.Hash instances
// created by init, so it can be shared by concurrent builders.
func NewHasherPool(init func() hash.Hash) *Hasher {
	return &Hasher{
		pool: &sync.Pool{
			New: func() interface{} {
				return init()
			},
		},
		size: init().Size(),
	}
}

func NewSha256Hasher() *Hasher {
	return NewHasherPool(sha256.New)
}

// NewKeccak256Hasher uses the legacy Keccak-256 padding used by Ethereum.
func NewKeccak256Hasher() *Hasher {
	return NewHasherPool(sha3.NewLegacyKeccak256)
}

type Hasher struct {
	pool *sync.Pool
	size int
}

func (h *Hasher) Hash(inputs ...[]byte) []byte {
	hasher := h.pool.Get().(hash.Hash)
	defer h.pool.Put(hasher)

	hasher.Reset()
	for i := range inputs {
		hasher.Write(inputs[i])
	}
	return hasher.Sum(nil)
}

// Size returns the number of bytes Hash will return.
func (h *Hasher) Size() int {
	return h.size
}
