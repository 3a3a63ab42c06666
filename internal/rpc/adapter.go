// Package rpc implements the RPC transport adapter (C2): one logical
// channel to a server endpoint, exposing a unary call primitive with a
// deadline and an explicit reconnect-on-unavailable operation that the
// retry policy (C3) drives.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/netmount/netmount/internal/logger"
	"github.com/netmount/netmount/internal/wire"
	"golang.org/x/sync/singleflight"
)

// Adapter owns a lazily-constructed logical channel to a single server
// endpoint. Concurrent callers share one channel; a reconnect triggered
// by one caller is deduplicated across all concurrent callers via
// singleflight so reconnect never deadlocks or multiplies.
type Adapter struct {
	addr  string
	group singleflight.Group

	mu sync.RWMutex
	ch *Channel
}

// NewAdapter constructs an Adapter for addr without dialing. The first
// Call or explicit Reconnect performs the initial dial + PING.
func NewAdapter(addr string) *Adapter {
	return &Adapter{addr: addr}
}

// Call invokes op with payload over the adapter's current channel,
// bounded by timeout. It never retries and never reconnects on its own;
// it reports the categorized transport outcome to the caller (C3),
// which decides whether to retry and whether to request a Reconnect.
func (a *Adapter) Call(ctx context.Context, op wire.Opcode, payload []byte, timeout time.Duration) ([]byte, error) {
	ch, err := a.currentOrDial(ctx)
	if err != nil {
		return nil, err
	}
	return ch.call(ctx, op, payload, timeout)
}

// Reconnect discards the current channel and constructs a new one to
// the same endpoint. Concurrent Reconnect calls converge on a single
// dial via singleflight.
func (a *Adapter) Reconnect(ctx context.Context) error {
	_, err, _ := a.group.Do("reconnect", func() (any, error) {
		a.mu.Lock()
		old := a.ch
		a.mu.Unlock()

		newCh, dialErr := dial(ctx, a.addr)
		if dialErr != nil {
			return nil, Unavailable(dialErr)
		}

		a.mu.Lock()
		a.ch = newCh
		a.mu.Unlock()

		if old != nil {
			if closeErr := old.close(); closeErr != nil {
				logger.Debug("rpc adapter: error closing stale channel", logger.Err(closeErr))
			}
		}
		return nil, nil
	})
	return err
}

// Close tears down the adapter's channel, if any.
func (a *Adapter) Close() error {
	a.mu.Lock()
	ch := a.ch
	a.ch = nil
	a.mu.Unlock()

	if ch == nil {
		return nil
	}
	return ch.close()
}

func (a *Adapter) currentOrDial(ctx context.Context) (*Channel, error) {
	a.mu.RLock()
	ch := a.ch
	a.mu.RUnlock()

	if ch != nil {
		return ch, nil
	}

	if err := a.Reconnect(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	ch = a.ch
	a.mu.RUnlock()
	return ch, nil
}
