// Package server implements netmountd's RPC dispatcher: it accepts TCP
// connections framed per the record-marking format in internal/rpc,
// decodes requests per internal/wire, and executes each filesystem
// operation against a local backing directory, consulting the
// server-side write-log (C6) and verifier authority (C7) for buffered
// writes and their commit.
package server

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/netmount/netmount/internal/logger"
	"github.com/netmount/netmount/internal/rpc"
	"github.com/netmount/netmount/internal/telemetry"
	"github.com/netmount/netmount/internal/wire"
	"github.com/netmount/netmount/internal/writelog"
	"github.com/netmount/netmount/pkg/bufpool"
	"github.com/netmount/netmount/pkg/metrics"
)

// Server dispatches decoded wire requests against a backing directory.
type Server struct {
	backingDir string
	log        *writelog.Log
	metrics    metrics.RPCMetrics

	listener net.Listener

	mu     sync.Mutex
	active int32

	wg sync.WaitGroup
}

// New constructs a Server rooted at backingDir, stamped with a fresh
// process-lifetime verifier (C7) and a write-log bounded by
// maxWriteLogEntrySize bytes per open path (0 disables the cap). m is
// optional; pass nil to disable connection metrics.
func New(backingDir string, maxWriteLogEntrySize uint64, m metrics.RPCMetrics) *Server {
	verifier := writelog.NewVerifier(timeNow())
	logger.Info("write-log verifier generated", "verifier", verifier.String())
	return &Server{
		backingDir: backingDir,
		log:        writelog.NewLog(verifier, maxWriteLogEntrySize),
		metrics:    m,
	}
}

// timeNow is a seam so tests could substitute a fixed clock; production
// always uses time.Now.
var timeNow = func() time.Time { return time.Now() }

// Serve listens on addr and accepts connections until ctx is canceled or
// Serve's listener is closed. Each connection is handled on its own
// goroutine, mirroring the kernel upcall layer's own concurrency (see
// the concurrency model's "distinct requests execute in parallel").
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger.Info("netmountd listening", "address", addr, "backing_dir", s.backingDir)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn serially processes frames on one connection until it
// closes or a framing error occurs. Ordering within a connection is
// preserved because requests are read and answered one at a time,
// matching C2's single-in-flight-per-channel client behavior.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logger.Debug("connection accepted", "client_address", remote)
	s.connOpened()
	defer s.connClosed()

	for {
		body, err := rpc.ReadFrame(conn)
		if err != nil {
			logger.Debug("connection closed", "client_address", remote, logger.Err(err))
			return
		}
		if len(body) < 4 {
			logger.Warn("short request frame, dropping connection", "client_address", remote)
			return
		}

		op := wire.Opcode(binary.BigEndian.Uint32(body[:4]))
		payload := body[4:]

		reqCtx, span := telemetry.StartProtocolSpan(ctx, "rpc", op.String())
		respBody, err := s.dispatch(reqCtx, op, payload)
		bufpool.Put(body)
		if err != nil {
			telemetry.RecordError(reqCtx, err)
			span.End()
			logger.Warn("dispatch error, dropping connection", "procedure", op.String(), logger.Err(err))
			return
		}
		span.End()

		if err := rpc.WriteFrame(conn, respBody); err != nil {
			logger.Debug("failed writing response frame", "client_address", remote, logger.Err(err))
			return
		}
	}
}

func (s *Server) connOpened() {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	s.active++
	count := s.active
	s.mu.Unlock()
	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(count)
}

func (s *Server) connClosed() {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	s.active--
	count := s.active
	s.mu.Unlock()
	s.metrics.RecordConnectionClosed()
	s.metrics.SetActiveConnections(count)
}
