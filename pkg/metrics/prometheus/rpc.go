package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/netmount/netmount/pkg/metrics"
)

// rpcMetrics is the Prometheus implementation of metrics.RPCMetrics.
type rpcMetrics struct {
	callsTotal          *prometheus.CounterVec
	callDuration        *prometheus.HistogramVec
	bytesTransferred    *prometheus.CounterVec
	retriesTotal        *prometheus.CounterVec
	reconnectsTotal     prometheus.Counter
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
}

// NewRPCMetrics creates a new Prometheus-backed RPCMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRPCMetrics() metrics.RPCMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &rpcMetrics{
		callsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netmount_rpc_calls_total",
				Help: "Total number of RPC calls by procedure and outcome",
			},
			[]string{"procedure", "error_code"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "netmount_rpc_call_duration_milliseconds",
				Help: "Duration of RPC calls in milliseconds",
				Buckets: []float64{
					1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000,
				},
			},
			[]string{"procedure"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netmount_rpc_bytes_transferred_total",
				Help: "Total bytes transferred via RPC calls",
			},
			[]string{"procedure", "direction"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netmount_rpc_retries_total",
				Help: "Total number of retried RPC attempts by procedure",
			},
			[]string{"procedure"},
		),
		reconnectsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "netmount_rpc_reconnects_total",
				Help: "Total number of channel reconnects triggered by the retry policy",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "netmount_rpc_active_connections",
				Help: "Current number of accepted server connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "netmount_rpc_connections_accepted_total",
				Help: "Total number of accepted server connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "netmount_rpc_connections_closed_total",
				Help: "Total number of closed server connections",
			},
		),
	}
}

func (m *rpcMetrics) RecordCall(procedure string, duration time.Duration, errorCode string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(procedure, errorCode).Inc()
	m.callDuration.WithLabelValues(procedure).Observe(duration.Seconds() * 1000)
}

func (m *rpcMetrics) RecordBytesTransferred(procedure, direction string, bytes uint64) {
	if m == nil {
		return
	}
	m.bytesTransferred.WithLabelValues(procedure, direction).Add(float64(bytes))
}

func (m *rpcMetrics) RecordRetry(procedure string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(procedure).Inc()
}

func (m *rpcMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

func (m *rpcMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *rpcMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *rpcMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}
