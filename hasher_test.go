// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestHasher_Hash(t *testing.T) {
	hasher := NewSha256Hasher()
	require.Equal(t, 32, hasher.Size())
	require.Equal(t,
		"ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb",
		common.Bytes2Hex(hasher.Hash([]byte("a"))))

	// multiple inputs hash their concatenation
	require.Equal(t, hasher.Hash([]byte("ab")), hasher.Hash([]byte("a"), []byte("b")))

	keccak := NewKeccak256Hasher()
	require.Equal(t, 32, keccak.Size())
	require.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		common.Bytes2Hex(keccak.Hash()))
}

func TestHasher_Concurrent(t *testing.T) {
	hasher := NewHasherPool(sha256.New)
	want := sha256.Sum256([]byte("leaf"))

	var wg sync.WaitGroup
	errs := make(chan []byte, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := hasher.Hash([]byte("le"), []byte("af")); !Digest(got).Equal(want[:]) {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("unexpected digest %x", got)
	}
}
