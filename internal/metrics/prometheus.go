package metrics

import (
	"sync"

	"github.com/arloliu/busbench/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are registered lazily on first use so that constructing one
// never panics on a shared registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	batchesDispatched *prometheus.CounterVec
	batchEvents       prometheus.Histogram
	batchBytes        prometheus.Histogram

	deliveries         *prometheus.CounterVec
	endToEndLatency    prometheus.Histogram
	rejectedDeliveries *prometheus.CounterVec

	sendDuration  *prometheus.HistogramVec
	receiveErrors *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "busbench" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "busbench"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.batchesDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "packer",
			Name:      "batches_dispatched_total",
			Help:      "Total dispatched batches by result (success,failure).",
		}, []string{"result"})

		p.batchEvents = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "packer",
			Name:      "batch_events",
			Help:      "Number of events per dispatched batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11), // 1 .. 1024
		})

		p.batchBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "packer",
			Name:      "batch_bytes",
			Help:      "Summed event size per dispatched batch in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
		})

		p.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "recorder",
			Name:      "deliveries_total",
			Help:      "Total recorded deliveries by partition.",
		}, []string{"partition"})

		p.endToEndLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "recorder",
			Name:      "produced_received_seconds",
			Help:      "Produced-to-received latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
		})

		p.rejectedDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "recorder",
			Name:      "rejected_deliveries_total",
			Help:      "Deliveries rejected by recorder state (Idle,Closed).",
		}, []string{"state"})

		p.sendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "send_duration_seconds",
			Help:      "Batch send duration in seconds by transport.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"transport"})

		p.receiveErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "receive_errors_total",
			Help:      "Receive-side errors by transport.",
		}, []string{"transport"})

		p.reg.MustRegister(p.batchesDispatched)
		p.reg.MustRegister(p.batchEvents)
		p.reg.MustRegister(p.batchBytes)
		p.reg.MustRegister(p.deliveries)
		p.reg.MustRegister(p.endToEndLatency)
		p.reg.MustRegister(p.rejectedDeliveries)
		p.reg.MustRegister(p.sendDuration)
		p.reg.MustRegister(p.receiveErrors)
	})
}

// PackerMetrics implementation

// RecordBatchDispatched counts the batch and observes its shape.
func (p *PrometheusCollector) RecordBatchDispatched(events, sizeBytes int, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.batchesDispatched.WithLabelValues(result).Inc()
	if success {
		p.batchEvents.Observe(float64(events))
		p.batchBytes.Observe(float64(sizeBytes))
	}
}

// RecorderMetrics implementation

// RecordDelivery counts the delivery and observes its end-to-end latency.
func (p *PrometheusCollector) RecordDelivery(partitionID string, producedToReceived float64) {
	p.ensureRegistered()
	p.deliveries.WithLabelValues(partitionID).Inc()
	p.endToEndLatency.Observe(producedToReceived)
}

// RecordRejectedDelivery counts a delivery rejected in the given state.
func (p *PrometheusCollector) RecordRejectedDelivery(state types.RecorderState) {
	p.ensureRegistered()
	p.rejectedDeliveries.WithLabelValues(state.String()).Inc()
}

// TransportMetrics implementation

// RecordSendDuration observes a batch send duration (seconds).
func (p *PrometheusCollector) RecordSendDuration(transport string, duration float64) {
	p.ensureRegistered()
	p.sendDuration.WithLabelValues(transport).Observe(duration)
}

// RecordReceiveError counts a receive-side error.
func (p *PrometheusCollector) RecordReceiveError(transport string) {
	p.ensureRegistered()
	p.receiveErrors.WithLabelValues(transport).Inc()
}
