package prometheus

import (
	"time"

	"github.com/bnb-chain/zkbnb-bmt/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var _ metrics.Metrics = (*Collector)(nil)

// NewCollector creates the tree gauges and registers them on registerer.
// Passing nil registers on prometheus.DefaultRegisterer.
func NewCollector(registerer prometheus.Registerer) (*Collector, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	c := &Collector{
		currentVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmt_current_version",
			Help: "The current committed version of the tree",
		}),
		leafCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmt_leaf_count",
			Help: "The number of committed leaves",
		}),
		stagedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmt_staged_count",
			Help: "The number of staged leaves waiting for the next commit",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmt_depth",
			Help: "The depth of the committed tree",
		}),
		commitNum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmt_commit_nums",
			Help: "The number of leaves added by each commit",
		}),
		rollbackNum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmt_rollback_nums",
			Help: "The number of versions discarded by each rollback",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bmt_build_duration_seconds",
			Help:    "The time spent rebuilding layers",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	for _, collector := range []prometheus.Collector{
		c.currentVersion,
		c.leafCount,
		c.stagedCount,
		c.depth,
		c.commitNum,
		c.rollbackNum,
		c.buildDuration,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type Collector struct {
	currentVersion prometheus.Gauge
	leafCount      prometheus.Gauge
	stagedCount    prometheus.Gauge
	depth          prometheus.Gauge
	commitNum      prometheus.Gauge
	rollbackNum    prometheus.Gauge
	buildDuration  prometheus.Histogram
}

func (c *Collector) Version(ver uint64) {
	c.currentVersion.Set(float64(ver))
}

func (c *Collector) LeafCount(n uint64) {
	c.leafCount.Set(float64(n))
}

func (c *Collector) StagedCount(n uint64) {
	c.stagedCount.Set(float64(n))
}

func (c *Collector) Depth(depth uint64) {
	c.depth.Set(float64(depth))
}

func (c *Collector) CommitNum(n int) {
	c.commitNum.Set(float64(n))
}

func (c *Collector) RollbackNum(n int) {
	c.rollbackNum.Set(float64(n))
}

func (c *Collector) BuildDuration(d time.Duration) {
	c.buildDuration.Observe(d.Seconds())
}
