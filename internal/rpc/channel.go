package rpc

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/netmount/netmount/internal/logger"
	"github.com/netmount/netmount/internal/telemetry"
	"github.com/netmount/netmount/internal/wire"
	"github.com/netmount/netmount/pkg/bufpool"
)

// Channel is a single logical connection to a server endpoint. It
// exposes one primitive, call, which is serialized: at most one RPC is
// in flight on the underlying socket at a time, which is sufficient to
// preserve per-path write ordering for a single client (see the
// concurrency model's ordering guarantee).
type Channel struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
}

// dial opens a new TCP connection to addr and exchanges a PING to
// verify the server is reachable. A PING failure is logged but is not
// fatal to channel construction: the spec only requires the outcome be
// logged, the caller decides whether to proceed.
func dial(ctx context.Context, addr string) (*Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	ch := &Channel{addr: addr, conn: conn}

	if _, err := ch.call(ctx, wire.OpPing, nil, 2*time.Second); err != nil {
		logger.Warn("rpc ping failed on new channel", logger.Err(err), "address", addr)
	} else {
		logger.Debug("rpc ping succeeded on new channel", "address", addr)
	}

	return ch, nil
}

// close closes the underlying connection. Safe to call more than once.
func (c *Channel) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// call writes a request frame and reads the matching response frame,
// categorizing any failure for the retry policy (C3).
func (c *Channel) call(ctx context.Context, op wire.Opcode, payload []byte, timeout time.Duration) ([]byte, error) {
	ctx, endSpan := startChannelSpan(ctx, op)
	var callErr error
	defer func() { endSpan(callErr) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		callErr = Unavailable(errors.New("channel is closed"))
		return nil, callErr
	}

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		callErr = Fatal(err)
		return nil, callErr
	}

	body := bufpool.Get(4 + len(payload))
	binary.BigEndian.PutUint32(body[:4], uint32(op))
	copy(body[4:], payload)

	if err := WriteFrame(c.conn, body); err != nil {
		bufpool.Put(body)
		callErr = categorize(err)
		return nil, callErr
	}
	bufpool.Put(body)

	respBody, err := ReadFrame(c.conn)
	if err != nil {
		callErr = categorize(err)
		return nil, callErr
	}
	return respBody, nil
}

// categorize maps a low-level I/O error to a TransportError category.
func categorize(err error) *TransportError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DeadlineExceeded(err)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return DeadlineExceeded(err)
	}
	// Any other I/O error on a socket read/write (closed, EOF, connection
	// reset, broken pipe) means the channel is no longer usable.
	return Unavailable(err)
}

func startChannelSpan(ctx context.Context, op wire.Opcode) (context.Context, func(error)) {
	ctx, span := telemetry.StartProtocolSpan(ctx, "rpc", op.String())
	return ctx, func(err error) {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
	}
}
