package gateway

import (
	"context"
	"os"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/netmount/netmount/internal/wire"
)

// Node addresses one path in the mounted namespace. It caches nothing:
// every Attr call re-issues GETATTR, matching the protocol's explicit
// absence of attribute caching.
type Node struct {
	fs   *FS
	path string
}

var (
	_ fs.Node               = (*Node)(nil)
	_ fs.NodeStringLookuper = (*Node)(nil)
	_ fs.HandleReadDirAller = (*Node)(nil)
	_ fs.NodeOpener         = (*Node)(nil)
	_ fs.NodeCreater        = (*Node)(nil)
	_ fs.NodeMkdirer        = (*Node)(nil)
	_ fs.NodeRemover        = (*Node)(nil)
	_ fs.NodeSetattrer      = (*Node)(nil)
)

// modeFromWire converts the raw mode reported by GETATTR (a stat
// mode_t, type bits and permission bits combined) into an os.FileMode.
func modeFromWire(raw uint32) os.FileMode {
	perm := os.FileMode(raw & 0777)
	if raw&syscall.S_IFMT == syscall.S_IFDIR {
		return perm | os.ModeDir
	}
	return perm
}

func (n *Node) Attr(ctx context.Context, attr *fuse.Attr) error {
	req := &wire.GetAttrRequest{Path: n.path}
	body, err := req.Encode()
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	respBody, err := n.fs.call(ctx, wire.OpGetAttr, body)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeGetAttrResponse(byteReader(respBody))
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(resp.Status); serr != nil {
		return serr
	}
	attr.Mode = modeFromWire(resp.Mode)
	attr.Nlink = resp.Nlink
	attr.Size = uint64(resp.Size)
	return nil
}

// Lookup resolves name under n by issuing GETATTR against the child
// path; a missing path surfaces as the errno the server reported
// (ENOENT for a normal miss).
func (n *Node) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := &Node{fs: n.fs, path: childPath(n.path, name)}
	var attr fuse.Attr
	if err := child.Attr(ctx, &attr); err != nil {
		return nil, err
	}
	return child, nil
}

func (n *Node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	req := &wire.ReadDirRequest{Path: n.path}
	body, err := req.Encode()
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	respBody, err := n.fs.call(ctx, wire.OpReadDir, body)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeReadDirResponse(byteReader(respBody))
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(resp.Status); serr != nil {
		return nil, serr
	}
	// READDIR carries only names; the kernel issues a separate LOOKUP
	// per entry, so DT_Unknown here costs nothing beyond that lookup.
	entries := make([]fuse.Dirent, 0, len(resp.Files))
	for _, name := range resp.Files {
		entries = append(entries, fuse.Dirent{Name: name, Type: fuse.DT_Unknown})
	}
	return entries, nil
}

// Open performs an access check only (see the protocol's stateless
// OPEN semantics); the returned Handle allocates no server-side
// resource and is itself just the path, re-opened per I/O.
func (n *Node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	openReq := &wire.OpenRequest{Path: n.path, Flags: uint32(req.Flags)}
	body, err := openReq.Encode()
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	respBody, err := n.fs.call(ctx, wire.OpOpen, body)
	if err != nil {
		return nil, err
	}
	openResp, err := wire.DecodeOpenResponse(byteReader(respBody))
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(openResp.Status); serr != nil {
		return nil, serr
	}
	return &Handle{node: n}, nil
}

// Create opens with create+write-only, defaulting a zero mode to 0666
// as the gateway, and closes immediately server-side; no handle is
// returned by the server, so the Handle here is the same stateless,
// path-addressed kind Open returns.
func (n *Node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	child := childPath(n.path, req.Name)
	mode := uint32(req.Mode.Perm())
	if mode == 0 {
		mode = 0666
	}
	createReq := &wire.CreateRequest{Path: child, Mode: mode}
	body, err := createReq.Encode()
	if err != nil {
		return nil, nil, fuse.Errno(syscall.EIO)
	}
	respBody, err := n.fs.call(ctx, wire.OpCreate, body)
	if err != nil {
		return nil, nil, err
	}
	createResp, err := wire.DecodeCreateResponse(byteReader(respBody))
	if err != nil {
		return nil, nil, fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(createResp.Status); serr != nil {
		return nil, nil, serr
	}
	childNode := &Node{fs: n.fs, path: child}
	return childNode, &Handle{node: childNode}, nil
}

func (n *Node) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	child := childPath(n.path, req.Name)
	mkdirReq := &wire.MkdirRequest{Path: child, Mode: uint32(req.Mode.Perm())}
	body, err := mkdirReq.Encode()
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	respBody, err := n.fs.call(ctx, wire.OpMkdir, body)
	if err != nil {
		return nil, err
	}
	mkdirResp, err := wire.DecodeMkdirResponse(byteReader(respBody))
	if err != nil {
		return nil, fuse.Errno(syscall.EIO)
	}
	if serr := statusErr(mkdirResp.Status); serr != nil {
		return nil, serr
	}
	return &Node{fs: n.fs, path: child}, nil
}

func (n *Node) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	child := childPath(n.path, req.Name)

	if req.Dir {
		r := &wire.RmdirRequest{Path: child}
		body, err := r.Encode()
		if err != nil {
			return fuse.Errno(syscall.EIO)
		}
		respBody, err := n.fs.call(ctx, wire.OpRmdir, body)
		if err != nil {
			return err
		}
		resp, err := wire.DecodeRmdirResponse(byteReader(respBody))
		if err != nil {
			return fuse.Errno(syscall.EIO)
		}
		return statusErr(resp.Status)
	}

	r := &wire.UnlinkRequest{Path: child}
	body, err := r.Encode()
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	respBody, err := n.fs.call(ctx, wire.OpUnlink, body)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeUnlinkResponse(byteReader(respBody))
	if err != nil {
		return fuse.Errno(syscall.EIO)
	}
	return statusErr(resp.Status)
}

// Setattr translates mtime/atime changes into UTIMENS. Size changes
// (truncate) and mode changes are accepted as no-ops: the wire protocol
// defines no TRUNCATE or CHMOD operation (see the design notes on
// truncate), so the documented current behavior — accept, do nothing,
// report success — is preserved rather than inventing protocol support.
func (n *Node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Mtime() || req.Valid.Atime() {
		utimensReq := &wire.UtimensRequest{
			Path:  n.path,
			Atime: req.Atime.UnixNano(),
			Mtime: req.Mtime.UnixNano(),
		}
		body, err := utimensReq.Encode()
		if err != nil {
			return fuse.Errno(syscall.EIO)
		}
		respBody, err := n.fs.call(ctx, wire.OpUtimens, body)
		if err != nil {
			return err
		}
		utimensResp, err := wire.DecodeUtimensResponse(byteReader(respBody))
		if err != nil {
			return fuse.Errno(syscall.EIO)
		}
		if serr := statusErr(utimensResp.Status); serr != nil {
			return serr
		}
	}
	return n.Attr(ctx, &resp.Attr)
}
