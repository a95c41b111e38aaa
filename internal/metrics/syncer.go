package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncerFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "fetch_total",
		Help:      "Count of attempts to fetch the remote tip.",
	}, []string{"network", "status"})

	syncerFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of fetching the remote tip.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	syncerProcessBatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "process_batch_total",
		Help:      "Count of processed block batches.",
	}, []string{"network", "status"})

	syncerProcessBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "process_batch_duration_seconds",
		Help:      "Duration of downloading and processing a batch of blocks.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	syncerProcessBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "process_batch_size",
		Help:      "Number of blocks per batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1..2048
	}, []string{"network"})

	syncerProcessBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "process_block_duration_seconds",
		Help:      "Duration of submitting a single block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	syncerRemoteHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "remote_height",
		Help:      "Best height reported by the block source.",
	}, []string{"network"})
)

// Syncer tracks metrics for the block source follower.
type Syncer struct {
	network string
}

// NewSyncer constructs a Syncer collector for a network.
func NewSyncer(network string) *Syncer {
	return &Syncer{network: orUnknown(network)}
}

// ObserveFetchTip records a tip fetch and the height it returned.
func (m Syncer) ObserveFetchTip(height int64, err error, started time.Time) {
	s := status(err)
	syncerFetchTotal.WithLabelValues(m.network, s).Inc()
	syncerFetchDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
	if err == nil {
		syncerRemoteHeight.WithLabelValues(m.network).Set(float64(height))
	}
}

// ObserveProcessBatch records processing of a batch of blocks.
func (m Syncer) ObserveProcessBatch(err error, blocks int, started time.Time) {
	s := status(err)
	syncerProcessBatchTotal.WithLabelValues(m.network, s).Inc()
	syncerProcessBatchDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
	syncerProcessBatchSize.WithLabelValues(m.network).Observe(float64(blocks))
}

// ObserveProcessBlock records submission of a single block.
func (m Syncer) ObserveProcessBlock(err error, _ int64, started time.Time) {
	syncerProcessBlockDuration.WithLabelValues(m.network, status(err)).Observe(time.Since(started).Seconds())
}
