package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scriptChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "script",
		Name:      "checks_total",
		Help:      "Count of script check batches by outcome.",
	}, []string{"network", "status"})

	scriptCheckInputs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "script",
		Name:      "inputs_total",
		Help:      "Count of inputs submitted for script verification.",
	}, []string{"network"})

	scriptChecksDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "script",
		Name:      "checks_duration_seconds",
		Help:      "Duration of verifying all inputs of a block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
)

// ScriptChecks tracks parallel script verification.
type ScriptChecks struct {
	network string
}

// NewScriptChecks constructs a ScriptChecks collector for a network.
func NewScriptChecks(network string) *ScriptChecks {
	return &ScriptChecks{network: orUnknown(network)}
}

// ObserveChecks records one batch of input checks.
func (m ScriptChecks) ObserveChecks(inputs int, err error, started time.Time) {
	s := status(err)
	scriptChecksTotal.WithLabelValues(m.network, s).Inc()
	scriptCheckInputs.WithLabelValues(m.network).Add(float64(inputs))
	scriptChecksDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
}
