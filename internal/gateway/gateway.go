// Package gateway implements the filesystem operation gateway (C4): for
// every kernel upcall bazil.org/fuse delivers, it marshals arguments
// into a wire request (C1), invokes the retry policy (C3) around the
// RPC adapter (C2), and demarshals the response into the upcall's
// return convention. No handle pool or inode table is maintained here;
// every Node and Handle is addressed purely by path, matching the wire
// protocol's statelessness.
package gateway

import (
	"context"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/netmount/netmount/internal/retry"
	"github.com/netmount/netmount/internal/rpc"
	"github.com/netmount/netmount/internal/wire"
	"github.com/netmount/netmount/internal/writebuffer"
)

// FS is the root of the mounted namespace.
type FS struct {
	adapter *rpc.Adapter
	policy  retry.Policy
	writes  *writebuffer.Buffer

	// asyncWrites mirrors the protocol's SET_RUN_SYNC mode switch: true
	// defers COMMIT to RELEASE (buffered, the default); false issues a
	// COMMIT after every WRITE_ASYNC so data is durable before the
	// upcall returns.
	asyncWrites bool
}

// New constructs the gateway's filesystem root, issuing every operation
// over adapter under policy and tracking buffered writes in writes (C5).
// asyncWrites selects the write-commit mode (see FS.asyncWrites).
func New(adapter *rpc.Adapter, policy retry.Policy, writes *writebuffer.Buffer, asyncWrites bool) *FS {
	return &FS{adapter: adapter, policy: policy, writes: writes, asyncWrites: asyncWrites}
}

// Root returns the node addressing "/".
func (f *FS) Root() (fs.Node, error) {
	return &Node{fs: f, path: "/"}, nil
}

// call applies the retry policy (C3) around the adapter (C2). Any
// surviving error at this layer is transport-fatal per the gateway's
// documented error mapping: transport errors become EIO, leaving
// well-formed failure responses to be decoded and translated by the
// caller via statusErr.
func (f *FS) call(ctx context.Context, op wire.Opcode, payload []byte) ([]byte, error) {
	resp, err := f.policy.Call(ctx, f.adapter, op, payload)
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	return resp, nil
}
