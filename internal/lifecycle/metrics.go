package lifecycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procgate",
			Subsystem: "process",
			Name:      "operations_total",
			Help:      "Total number of process lifecycle operations by result.",
		},
		[]string{"operation", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "procgate",
			Subsystem: "process",
			Name:      "operation_duration_seconds",
			Help:      "Process lifecycle operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// observe records one finished operation. errp is read at call time, so it
// must be deferred with a pointer to the named error result.
func observe(op string, start time.Time, errp *error) {
	operationsTotal.WithLabelValues(op, errorKind(*errp)).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
