package server

import (
	"errors"
	"syscall"
)

// errnoFrom extracts the portable POSIX errno underlying err, if any was
// attached by the standard library's *fs.PathError/*os.SyscallError
// wrapping, falling back to EIO for anything else. The gateway (C4)
// surfaces this positive value to the kernel upcall layer as a
// fuse.Errno.
func errnoFrom(err error) int32 {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int32(errno)
	}
	return int32(syscall.EIO)
}
