package metrics

import "time"

type Metrics interface {
	// The current committed version of the tree
	Version(uint64)
	// The number of committed leaves
	LeafCount(uint64)
	// The number of staged leaves waiting for the next commit
	StagedCount(uint64)
	// The depth of the committed tree
	Depth(uint64)
	// The number of leaves added by each commit
	CommitNum(int)
	// The number of versions discarded by each rollback
	RollbackNum(int)
	// The time spent rebuilding layers
	BuildDuration(time.Duration)
}
