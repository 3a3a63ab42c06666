// Package retry implements the bounded exponential backoff retry policy
// (C3) wrapped around every unary RPC call.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/netmount/netmount/internal/logger"
	"github.com/netmount/netmount/internal/rpc"
	"github.com/netmount/netmount/internal/telemetry"
	"github.com/netmount/netmount/internal/wire"
	"github.com/netmount/netmount/pkg/metrics"
)

// ErrRetriesExhausted is returned once MaxAttempts transport-transient
// failures have been observed for a single call.
var ErrRetriesExhausted = fmt.Errorf("rpc: retries exhausted")

// Policy configures the retry loop: up to MaxAttempts attempts, sleeping
// 2^(k-1) * InitialBackoff between attempts, with PerAttemptTimeout
// bounding each individual attempt.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	PerAttemptTimeout time.Duration

	// Metrics is optional; nil disables call/retry/reconnect counters.
	Metrics metrics.RPCMetrics
}

// Call executes op/payload against adapter under the policy. Retry is
// taken only for transport-categorized errors (CategoryUnavailable,
// CategoryDeadlineExceeded); any other error — including a well-formed
// failure response the caller decodes from the returned bytes — is
// returned immediately. On CategoryUnavailable the adapter is asked to
// reconnect before the next attempt.
func (p Policy) Call(ctx context.Context, adapter *rpc.Adapter, op wire.Opcode, payload []byte) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0 // deterministic 2^(k-1)s schedule, no jitter
	bo.MaxElapsedTime = 0      // attempt count bounds the loop, not elapsed time

	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		resp, err := adapter.Call(ctx, op, payload, p.PerAttemptTimeout)
		if err == nil {
			recordCall(p.Metrics, op, time.Since(start), "")
			return resp, nil
		}

		lastErr = err

		te, ok := rpc.AsTransportError(err)
		if !ok || (te.Category != rpc.CategoryUnavailable && te.Category != rpc.CategoryDeadlineExceeded) {
			recordCall(p.Metrics, op, time.Since(start), categoryLabel(err))
			return nil, err
		}

		logger.Warn("rpc call attempt failed, will retry",
			"procedure", op.String(),
			logger.Attempt(attempt),
			logger.MaxRetries(p.MaxAttempts),
			logger.Err(err))
		telemetry.AddEvent(ctx, "rpc.retry", telemetry.FSOperation(op.String()))
		if p.Metrics != nil {
			p.Metrics.RecordRetry(op.String())
		}

		if attempt == p.MaxAttempts {
			break
		}

		if te.Category == rpc.CategoryUnavailable {
			if rErr := adapter.Reconnect(ctx); rErr != nil {
				logger.Warn("rpc reconnect failed", logger.Err(rErr))
			} else if p.Metrics != nil {
				p.Metrics.RecordReconnect()
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}

	recordCall(p.Metrics, op, time.Since(start), categoryLabel(lastErr))
	return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

func recordCall(m metrics.RPCMetrics, op wire.Opcode, duration time.Duration, errorCode string) {
	if m != nil {
		m.RecordCall(op.String(), duration, errorCode)
	}
}

// categoryLabel extracts the transport error category name for
// metrics, or "fatal" if err did not originate from this package's
// transport error type.
func categoryLabel(err error) string {
	te, ok := rpc.AsTransportError(err)
	if !ok {
		return rpc.CategoryFatal.String()
	}
	return te.Category.String()
}
