package metrics

import "time"

// RPCMetrics provides observability for the RPC transport (C2) and
// retry policy (C3) layers.
//
// Implementations can collect metrics about call counts, durations,
// bytes transferred, connection lifecycle, and retries. This interface
// is optional - pass nil to disable metrics collection with zero
// overhead.
type RPCMetrics interface {
	// RecordCall records a completed RPC call with its procedure name,
	// duration, and outcome. errorCode is the portable errno the
	// response carried, or empty if the call succeeded.
	RecordCall(procedure string, duration time.Duration, errorCode string)

	// RecordBytesTransferred records bytes read or written by a READ or
	// WRITE_ASYNC call. direction is "read" or "write".
	RecordBytesTransferred(procedure string, direction string, bytes uint64)

	// RecordRetry records a single retried attempt for procedure, after
	// a transport-transient failure.
	RecordRetry(procedure string)

	// RecordReconnect records a channel reconnect triggered by the
	// retry policy.
	RecordReconnect()

	// SetActiveConnections updates the current connection count
	// (netmountd's accepted-connection gauge).
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the total accepted
	// connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections
	// counter.
	RecordConnectionClosed()
}
