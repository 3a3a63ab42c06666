package gateway

import (
	"context"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/netmount/netmount/internal/wire"
)

// Handle is a stateless, path-addressed open file: it carries no
// server-side resource (see Node.Open), only the path of the node it
// was opened against.
type Handle struct {
	node *Node
}

var (
	_ fs.Handle         = (*Handle)(nil)
	_ fs.HandleReader   = (*Handle)(nil)
	_ fs.HandleWriter   = (*Handle)(nil)
	_ fs.HandleReleaser = (*Handle)(nil)
)

// Read returns a zero-length, error-free result when the server
// reports a read past end-of-file (Success=false, ErrorCode=0), and
// reports EFBIG if the server ever returns more bytes than the
// kernel's buffer could accept.
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	readReq := &wire.ReadRequest{
		Path:   h.node.path,
		Offset: uint64(req.Offset),
		Size:   uint32(req.Size),
	}
	body, err := readReq.Encode()
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	respBody, err := h.node.fs.call(ctx, wire.OpRead, body)
	if err != nil {
		return err
	}
	readResp, err := wire.DecodeReadResponse(byteReader(respBody))
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	if !readResp.Status.Success && readResp.Status.ErrorCode != 0 {
		return statusErr(readResp.Status)
	}
	if len(readResp.Content) > req.Size {
		return fuse.Errno(syscall.EFBIG)
	}
	resp.Data = readResp.Content
	return nil
}

func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	writeReq := &wire.WriteRequest{
		Path:    h.node.path,
		Offset:  uint64(req.Offset),
		Content: req.Data,
	}
	body, err := writeReq.Encode()
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	respBody, err := h.node.fs.call(ctx, wire.OpWriteAsync, body)
	if err != nil {
		return err
	}
	writeResp, err := wire.DecodeWriteResponse(byteReader(respBody))
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(writeResp.Status); serr != nil {
		return serr
	}
	h.node.fs.writes.Record(h.node.path, writeResp.WriteVerifier)
	resp.Size = int(writeResp.BytesWritten)

	if !h.node.fs.asyncWrites {
		return h.commit(ctx)
	}
	return nil
}

// commit issues COMMIT for every verifier buffered against the node's
// path and clears the buffer on success.
func (h *Handle) commit(ctx context.Context) error {
	path := h.node.path
	verifiers := h.node.fs.writes.Snapshot(path)
	commitReq := &wire.CommitRequest{Path: path, WriteVerifiers: verifiers}
	body, err := commitReq.Encode()
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	respBody, err := h.node.fs.call(ctx, wire.OpCommit, body)
	if err != nil {
		return err
	}
	commitResp, err := wire.DecodeCommitResponse(byteReader(respBody))
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(commitResp.Status); serr != nil {
		return serr
	}
	h.node.fs.writes.Clear(path)
	return nil
}

// Release issues COMMIT when the epoch buffered at least one WRITE,
// and a lightweight existence check (RELEASE) otherwise.
func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	path := h.node.path
	if h.node.fs.writes.Dirty(path) {
		return h.commit(ctx)
	}

	releaseReq := &wire.ReleaseRequest{Path: path}
	body, err := releaseReq.Encode()
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	respBody, err := h.node.fs.call(ctx, wire.OpRelease, body)
	if err != nil {
		return err
	}
	releaseResp, err := wire.DecodeReleaseResponse(byteReader(respBody))
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	return statusErr(releaseResp.Status)
}
