package gateway

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"bazil.org/fuse"

	"github.com/netmount/netmount/internal/retry"
	"github.com/netmount/netmount/internal/rpc"
	"github.com/netmount/netmount/internal/server"
	"github.com/netmount/netmount/internal/writebuffer"
)

func newTestGateway(t *testing.T) *FS {
	return newTestGatewayAsync(t, true)
}

func newTestGatewayAsync(t *testing.T, asyncWrites bool) *FS {
	t.Helper()

	dir := t.TempDir()
	srv := server.New(dir, 0, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close probe listener: %v", err)
	}
	go func() {
		_ = srv.Serve(ctx, addr)
	}()

	// Serve opens its own listener asynchronously; give it a moment
	// before the adapter's first Call attempts to connect.
	time.Sleep(50 * time.Millisecond)

	adapter := rpc.NewAdapter(addr)
	t.Cleanup(func() { _ = adapter.Close() })

	policy := retry.Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Millisecond, PerAttemptTimeout: time.Second}
	return New(adapter, policy, writebuffer.New(), asyncWrites)
}

func errno(err error) syscall.Errno {
	fe, ok := err.(fuse.Errno)
	if !ok {
		return 0
	}
	return syscall.Errno(fe)
}

func TestRootAttr(t *testing.T) {
	gw := newTestGateway(t)
	root, err := gw.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	node := root.(*Node)

	var attr fuse.Attr
	if err := node.Attr(context.Background(), &attr); err != nil {
		t.Fatalf("attr: %v", err)
	}
	if !attr.Mode.IsDir() {
		t.Errorf("expected root to report as a directory, got mode %v", attr.Mode)
	}
}

func TestCreateWriteCommitRelease(t *testing.T) {
	gw := newTestGateway(t)
	root, _ := gw.Root()
	node := root.(*Node)
	ctx := context.Background()

	createReq := &fuse.CreateRequest{Name: "f", Mode: 0644}
	createResp := &fuse.CreateResponse{}
	childNode, childHandleIface, err := node.Create(ctx, createReq, createResp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	handle := childHandleIface.(*Handle)
	_ = childNode

	writeReq := &fuse.WriteRequest{Offset: 0, Data: []byte("hello")}
	writeResp := &fuse.WriteResponse{}
	if err := handle.Write(ctx, writeReq, writeResp); err != nil {
		t.Fatalf("write: %v", err)
	}
	if writeResp.Size != 5 {
		t.Errorf("expected 5 bytes written, got %d", writeResp.Size)
	}

	if err := handle.Release(ctx, &fuse.ReleaseRequest{}); err != nil {
		t.Fatalf("release (commit path): %v", err)
	}

	readReq := &fuse.ReadRequest{Offset: 0, Size: 4096}
	readResp := &fuse.ReadResponse{}
	if err := handle.Read(ctx, readReq, readResp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(readResp.Data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", readResp.Data)
	}
}

func TestSyncWriteCommitsImmediately(t *testing.T) {
	gw := newTestGatewayAsync(t, false)
	root, _ := gw.Root()
	node := root.(*Node)
	ctx := context.Background()

	_, childHandleIface, err := node.Create(ctx, &fuse.CreateRequest{Name: "f", Mode: 0644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	handle := childHandleIface.(*Handle)

	writeResp := &fuse.WriteResponse{}
	if err := handle.Write(ctx, &fuse.WriteRequest{Offset: 0, Data: []byte("hello")}, writeResp); err != nil {
		t.Fatalf("write: %v", err)
	}

	if gw.writes.Dirty("/f") {
		t.Errorf("expected write buffer to be clear after a synchronous commit")
	}

	readResp := &fuse.ReadResponse{}
	if err := handle.Read(ctx, &fuse.ReadRequest{Offset: 0, Size: 4096}, readResp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(readResp.Data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", readResp.Data)
	}

	if err := handle.Release(ctx, &fuse.ReleaseRequest{}); err != nil {
		t.Fatalf("release after sync write: %v", err)
	}
}

func TestLookupMissing(t *testing.T) {
	gw := newTestGateway(t)
	root, _ := gw.Root()
	node := root.(*Node)

	_, err := node.Lookup(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error for missing path")
	}
	if errno(err) != syscall.ENOENT {
		t.Errorf("expected ENOENT, got %v", err)
	}
}

func TestReadDirAll(t *testing.T) {
	gw := newTestGateway(t)
	root, _ := gw.Root()
	node := root.(*Node)
	ctx := context.Background()

	_, _, err := node.Create(ctx, &fuse.CreateRequest{Name: "a", Mode: 0644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	_, _, err = node.Create(ctx, &fuse.CreateRequest{Name: "b", Mode: 0644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	entries, err := node.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestMkdirAndRemove(t *testing.T) {
	gw := newTestGateway(t)
	root, _ := gw.Root()
	node := root.(*Node)
	ctx := context.Background()

	child, err := node.Mkdir(ctx, &fuse.MkdirRequest{Name: "sub", Mode: 0755})
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, ok := child.(*Node); !ok {
		t.Fatalf("expected *Node from Mkdir")
	}

	if err := node.Remove(ctx, &fuse.RemoveRequest{Name: "sub", Dir: true}); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	_, _, err = node.Create(ctx, &fuse.CreateRequest{Name: "file", Mode: 0644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := node.Remove(ctx, &fuse.RemoveRequest{Name: "file"}); err != nil {
		t.Fatalf("remove file: %v", err)
	}
}

func TestReadBeyondEOFIsNotAnError(t *testing.T) {
	gw := newTestGateway(t)
	root, _ := gw.Root()
	node := root.(*Node)
	ctx := context.Background()

	_, handleIface, err := node.Create(ctx, &fuse.CreateRequest{Name: "empty", Mode: 0644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	handle := handleIface.(*Handle)

	readResp := &fuse.ReadResponse{}
	if err := handle.Read(ctx, &fuse.ReadRequest{Offset: 1000, Size: 4096}, readResp); err != nil {
		t.Fatalf("expected no error reading past EOF, got %v", err)
	}
	if len(readResp.Data) != 0 {
		t.Errorf("expected zero bytes past EOF, got %d", len(readResp.Data))
	}
}
