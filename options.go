package bmt

import (
	"github.com/bnb-chain/zkbnb-bmt/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/panjf2000/ants/v2"
)

// Option is a function that configures the tree.
type Option func(*BinaryMerkleTree)

func EnableMetrics(metrics metrics.Metrics) Option {
	return func(tree *BinaryMerkleTree) {
		tree.metrics = metrics
	}
}

func WithLogger(logger log.Logger) Option {
	return func(tree *BinaryMerkleTree) {
		if logger != nil {
			tree.logger = logger
		}
	}
}

// WithWorkerPool lets the builder hash wide layers on pool. The pool is
// owned by the caller and is not released by the tree.
func WithWorkerPool(pool *ants.Pool) Option {
	return func(tree *BinaryMerkleTree) {
		tree.builder.pool = pool
	}
}

// ParallelThreshold sets the minimum layer width handed to the worker pool.
func ParallelThreshold(threshold int) Option {
	return func(tree *BinaryMerkleTree) {
		tree.builder.threshold = threshold
	}
}

// UncommittedCacheSize sets how many uncommitted builds are memoised.
// Zero disables the cache.
func UncommittedCacheSize(size int) Option {
	return func(tree *BinaryMerkleTree) {
		tree.cacheSize = size
	}
}
