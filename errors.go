// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bmt

import (
	"github.com/pkg/errors"
)

var (
	ErrEmptyRoot = errors.New("empty root")

	ErrNilHasher = errors.New("hasher must not be nil")

	ErrIndexOutOfRange = errors.New("leaf index out of range")

	ErrNothingToRollback = errors.New("nothing to roll back to")

	ErrVersionTooHigh = errors.New("the version is higher than the latest version")

	ErrVersionMismatched = errors.New("the version is mismatched with the database")

	ErrInvalidDigestSize = errors.New("digest size does not match the hasher")

	ErrLeafCountMismatch = errors.New("number of leaves does not match number of indices")

	ErrDuplicateIndex = errors.New("duplicate index")

	ErrInvalidProof = errors.New("invalid proof")

	ErrInvalidProofSize = errors.New("proof size is not a multiple of the digest size")
)
