// Package metrics exposes application metrics collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "btckernel"

var (
	chainstateProcessBlockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "process_block_total",
		Help:      "Count of submitted blocks by outcome.",
	}, []string{"network", "status"})

	chainstateProcessBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "process_block_duration_seconds",
		Help:      "Duration of processing a submitted block, activation included.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"network", "status"})

	chainstateConnectBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "connect_block_duration_seconds",
		Help:      "Duration of connecting a single block to the UTXO set.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	chainstateConnectBlockTxs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "connect_block_transactions",
		Help:      "Number of transactions per connected block.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1..8192
	}, []string{"network"})

	chainstateReorgDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "reorg_depth_blocks",
		Help:      "Blocks disconnected per reorganization.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	}, []string{"network"})

	chainstateFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "flush_total",
		Help:      "Count of chainstate flushes by outcome.",
	}, []string{"network", "status"})

	chainstateFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "flush_duration_seconds",
		Help:      "Duration of writing the block index and coin cache.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	chainstateTipHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "tip_height",
		Help:      "Height of the active chain tip.",
	}, []string{"network"})

	chainstateCachedCoins = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chainstate",
		Name:      "cached_coins",
		Help:      "Outpoints held in the coin cache.",
	}, []string{"network"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Chainstate tracks metrics for a chainstate manager.
type Chainstate struct {
	network string
}

// NewChainstate constructs a Chainstate collector for a network.
func NewChainstate(network string) *Chainstate {
	return &Chainstate{network: orUnknown(network)}
}

// ObserveProcessBlock records the outcome of one submitted block.
func (m Chainstate) ObserveProcessBlock(err error, started time.Time) {
	s := status(err)
	chainstateProcessBlockTotal.WithLabelValues(m.network, s).Inc()
	chainstateProcessBlockDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
}

// ObserveConnectBlock records a block connection.
func (m Chainstate) ObserveConnectBlock(txs int, err error, started time.Time) {
	chainstateConnectBlockDuration.WithLabelValues(m.network, status(err)).Observe(time.Since(started).Seconds())
	if err == nil {
		chainstateConnectBlockTxs.WithLabelValues(m.network).Observe(float64(txs))
	}
}

// ObserveReorg records a reorganization that disconnected blocks.
func (m Chainstate) ObserveReorg(disconnected int) {
	chainstateReorgDepth.WithLabelValues(m.network).Observe(float64(disconnected))
}

// ObserveFlush records a flush of the block index and coin cache.
func (m Chainstate) ObserveFlush(err error, started time.Time) {
	s := status(err)
	chainstateFlushTotal.WithLabelValues(m.network, s).Inc()
	chainstateFlushDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
}

// SetTip publishes the active tip height and the coin cache size.
func (m Chainstate) SetTip(height int32, cachedCoins int) {
	chainstateTipHeight.WithLabelValues(m.network).Set(float64(height))
	chainstateCachedCoins.WithLabelValues(m.network).Set(float64(cachedCoins))
}
