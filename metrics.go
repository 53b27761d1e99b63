package docstore

import (
	stderrors "errors"
	"time"

	"github.com/autom8ter/docstore/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics records client operations. A nil *metrics records nothing.
type metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_operations_total",
			Help: "Total number of docstore client operations",
		},
		[]string{"operation", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_operation_duration_seconds",
			Help:    "Latency of docstore client operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	m := &metrics{}
	if err := reg.Register(operations); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !stderrors.As(err, &already) {
			return nil, errors.Wrap(err, errors.Internal, "failed to register metrics")
		}
		operations = already.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !stderrors.As(err, &already) {
			return nil, errors.Wrap(err, errors.Internal, "failed to register metrics")
		}
		duration = already.ExistingCollector.(*prometheus.HistogramVec)
	}
	m.operations = operations
	m.duration = duration
	return m, nil
}

func (m *metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = errors.Extract(err).Code.String()
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
