package gateway

import (
	"bytes"
	"io"
	"syscall"

	"bazil.org/fuse"

	"github.com/netmount/netmount/internal/wire"
)

func byteReader(b []byte) io.Reader { return bytes.NewReader(b) }

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// statusErr translates a wire Status into the gateway's error return
// convention: nil on success, otherwise the portable errno it carries
// (EIO if the failure carries no errno of its own, matching the
// malformed-response case of the gateway's error mapping).
func statusErr(s wire.Status) error {
	if s.Success {
		return nil
	}
	if s.ErrorCode == 0 {
		return fuse.Errno(syscall.EIO)
	}
	return fuse.Errno(syscall.Errno(s.ErrorCode))
}
