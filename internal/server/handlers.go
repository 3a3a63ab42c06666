package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"syscall"

	"github.com/netmount/netmount/internal/wire"
	"github.com/netmount/netmount/internal/writelog"
	"golang.org/x/sys/unix"
)

// resolvePath resolves a client path against the backing directory by
// simple concatenation, exactly as the protocol specifies: no ".."
// canonicalization or escape hardening is performed here.
func (s *Server) resolvePath(path string) string {
	return s.backingDir + path
}

func ok() wire.Status { return wire.Status{Success: true} }

func failErr(err error) wire.Status {
	return wire.Status{Success: false, Message: err.Error(), ErrorCode: errnoFrom(err)}
}

// dispatch decodes payload per op and executes the corresponding
// operation, returning the encoded response body.
func (s *Server) dispatch(ctx context.Context, op wire.Opcode, payload []byte) ([]byte, error) {
	r := bytes.NewReader(payload)

	switch op {
	case wire.OpPing:
		resp := &wire.PingResponse{Status: ok()}
		return resp.Encode()

	case wire.OpGetAttr:
		req, err := wire.DecodeGetAttrRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleGetAttr(req)

	case wire.OpReadDir:
		req, err := wire.DecodeReadDirRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleReadDir(req)

	case wire.OpOpen:
		req, err := wire.DecodeOpenRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleOpen(req)

	case wire.OpRead:
		req, err := wire.DecodeReadRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleRead(req)

	case wire.OpWriteAsync:
		req, err := wire.DecodeWriteRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleWriteAsync(req)

	case wire.OpCommit:
		req, err := wire.DecodeCommitRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleCommit(req)

	case wire.OpRelease:
		req, err := wire.DecodeReleaseRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleRelease(req)

	case wire.OpCreate:
		req, err := wire.DecodeCreateRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleCreate(req)

	case wire.OpUnlink:
		req, err := wire.DecodeUnlinkRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleUnlink(req)

	case wire.OpMkdir:
		req, err := wire.DecodeMkdirRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleMkdir(req)

	case wire.OpRmdir:
		req, err := wire.DecodeRmdirRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleRmdir(req)

	case wire.OpUtimens:
		req, err := wire.DecodeUtimensRequest(r)
		if err != nil {
			return nil, err
		}
		return s.handleUtimens(req)

	default:
		return nil, fmt.Errorf("server: unknown opcode %d", op)
	}
}

func (s *Server) handleGetAttr(req *wire.GetAttrRequest) ([]byte, error) {
	info, err := os.Lstat(s.resolvePath(req.Path))
	if err != nil {
		resp := &wire.GetAttrResponse{Status: failErr(err)}
		return resp.Encode()
	}

	mode, nlink := statDetails(info)
	resp := &wire.GetAttrResponse{
		Status: ok(),
		Mode:   mode,
		Nlink:  nlink,
		Size:   info.Size(),
	}
	return resp.Encode()
}

func statDetails(info os.FileInfo) (mode, nlink uint32) {
	mode = uint32(info.Mode().Perm())
	if info.IsDir() {
		mode |= syscall.S_IFDIR
	} else {
		mode |= syscall.S_IFREG
	}
	nlink = 1
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		mode = uint32(st.Mode)
		nlink = uint32(st.Nlink)
	}
	return mode, nlink
}

func (s *Server) handleReadDir(req *wire.ReadDirRequest) ([]byte, error) {
	entries, err := os.ReadDir(s.resolvePath(req.Path))
	if err != nil {
		resp := &wire.ReadDirResponse{Status: failErr(err)}
		return resp.Encode()
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.Name())
	}
	resp := &wire.ReadDirResponse{Status: ok(), Files: files}
	return resp.Encode()
}

// handleOpen performs an access check only; it allocates no server-side
// resource, keeping the server stateless with respect to open files.
func (s *Server) handleOpen(req *wire.OpenRequest) ([]byte, error) {
	full := s.resolvePath(req.Path)

	var accessMode uint32
	switch req.Flags & syscall.O_ACCMODE {
	case syscall.O_WRONLY:
		accessMode = unix.W_OK
	case syscall.O_RDWR:
		accessMode = unix.R_OK | unix.W_OK
	default:
		accessMode = unix.R_OK
	}

	if err := unix.Access(full, accessMode); err != nil {
		resp := &wire.OpenResponse{Status: failErr(err)}
		return resp.Encode()
	}
	resp := &wire.OpenResponse{Status: ok()}
	return resp.Encode()
}

// handleRead opens the backing path per call (stateless reads), bounds
// the requested window to the file's actual size, and performs a
// positioned read.
func (s *Server) handleRead(req *wire.ReadRequest) ([]byte, error) {
	full := s.resolvePath(req.Path)

	f, err := os.OpenFile(full, int(req.Flags)|os.O_RDONLY, 0)
	if err != nil {
		resp := &wire.ReadResponse{Status: failErr(err)}
		return resp.Encode()
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		resp := &wire.ReadResponse{Status: failErr(err)}
		return resp.Encode()
	}

	if req.Offset >= uint64(info.Size()) {
		resp := &wire.ReadResponse{Status: wire.Status{Success: false, ErrorCode: 0}}
		return resp.Encode()
	}

	remaining := uint64(info.Size()) - req.Offset
	size := uint64(req.Size)
	if remaining < size {
		size = remaining
	}

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(req.Offset))
	if err != nil && err != io.EOF {
		resp := &wire.ReadResponse{Status: failErr(err)}
		return resp.Encode()
	}

	resp := &wire.ReadResponse{Status: ok(), Content: buf[:n]}
	return resp.Encode()
}

// handleWriteAsync buffers the write in the server write-log (C6) and
// reports the current verifier (C7); the record is not durable until
// COMMIT.
func (s *Server) handleWriteAsync(req *wire.WriteRequest) ([]byte, error) {
	verifier, err := s.log.Append(req.Path, writelog.WriteRecord{Offset: req.Offset, Content: req.Content})
	if err != nil {
		resp := &wire.WriteResponse{Status: failErr(err)}
		return resp.Encode()
	}

	resp := &wire.WriteResponse{
		Status:        ok(),
		BytesWritten:  uint32(len(req.Content)),
		WriteVerifier: verifier.String(),
	}
	return resp.Encode()
}

// handleCommit validates the client's observed verifiers against the
// log's authority and, if they agree, flushes the path's merged
// buffered records positionally to the backing file.
func (s *Server) handleCommit(req *wire.CommitRequest) ([]byte, error) {
	outcome := s.log.Commit(req.Path, req.WriteVerifiers)
	if !outcome.Success {
		resp := &wire.CommitResponse{
			Status:               wire.Status{Success: false, Message: outcome.Message, ErrorCode: outcome.ErrorCode},
			CurrentWriteVerifier: outcome.CurrentWriteVerifier,
		}
		return resp.Encode()
	}

	if len(outcome.Merged) > 0 {
		if err := flushRecords(s.resolvePath(req.Path), outcome.Merged); err != nil {
			resp := &wire.CommitResponse{
				Status:               failErr(err),
				CurrentWriteVerifier: outcome.CurrentWriteVerifier,
			}
			return resp.Encode()
		}
	}

	resp := &wire.CommitResponse{Status: ok(), CurrentWriteVerifier: outcome.CurrentWriteVerifier}
	return resp.Encode()
}

// flushRecords opens path write-only, creating it with mode 0644 if it
// is absent (the COMMIT request's Flags field is not used), and seek-writes each
// merged record positionally, stopping at the first I/O failure and
// leaving further records unapplied (partial-commit is observable, per
// the protocol's documented limitation).
func flushRecords(path string, records []writelog.WriteRecord) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	sort.Slice(records, func(i, j int) bool { return records[i].Offset < records[j].Offset })

	for _, rec := range records {
		if _, err := f.WriteAt(rec.Content, int64(rec.Offset)); err != nil {
			return err
		}
	}
	return nil
}

// handleRelease is a lightweight existence check; when there were
// buffered writes the gateway issues COMMIT in place of RELEASE.
func (s *Server) handleRelease(req *wire.ReleaseRequest) ([]byte, error) {
	if _, err := os.Lstat(s.resolvePath(req.Path)); err != nil {
		resp := &wire.ReleaseResponse{Status: failErr(err)}
		return resp.Encode()
	}
	resp := &wire.ReleaseResponse{Status: ok()}
	return resp.Encode()
}

func (s *Server) handleCreate(req *wire.CreateRequest) ([]byte, error) {
	mode := req.Mode
	if mode == 0 {
		mode = 0666
	}

	f, err := os.OpenFile(s.resolvePath(req.Path), os.O_CREATE|os.O_WRONLY, os.FileMode(mode))
	if err != nil {
		resp := &wire.CreateResponse{Status: failErr(err)}
		return resp.Encode()
	}
	f.Close()

	resp := &wire.CreateResponse{Status: ok()}
	return resp.Encode()
}

func (s *Server) handleUnlink(req *wire.UnlinkRequest) ([]byte, error) {
	if err := os.Remove(s.resolvePath(req.Path)); err != nil {
		resp := &wire.UnlinkResponse{Status: failErr(err)}
		return resp.Encode()
	}
	s.log.Forget(req.Path)
	resp := &wire.UnlinkResponse{Status: ok()}
	return resp.Encode()
}

func (s *Server) handleMkdir(req *wire.MkdirRequest) ([]byte, error) {
	mode := req.Mode
	if mode == 0 {
		mode = 0777
	}
	if err := os.Mkdir(s.resolvePath(req.Path), os.FileMode(mode)); err != nil {
		resp := &wire.MkdirResponse{Status: failErr(err)}
		return resp.Encode()
	}
	resp := &wire.MkdirResponse{Status: ok()}
	return resp.Encode()
}

func (s *Server) handleRmdir(req *wire.RmdirRequest) ([]byte, error) {
	if err := os.Remove(s.resolvePath(req.Path)); err != nil {
		resp := &wire.RmdirResponse{Status: failErr(err)}
		return resp.Encode()
	}
	resp := &wire.RmdirResponse{Status: ok()}
	return resp.Encode()
}

func (s *Server) handleUtimens(req *wire.UtimensRequest) ([]byte, error) {
	full := s.resolvePath(req.Path)
	atime := unixNanoToTimespec(req.Atime)
	mtime := unixNanoToTimespec(req.Mtime)

	if err := unix.UtimesNanoAt(unix.AT_FDCWD, full, []unix.Timespec{atime, mtime}, 0); err != nil {
		resp := &wire.UtimensResponse{Status: failErr(err)}
		return resp.Encode()
	}
	resp := &wire.UtimensResponse{Status: ok()}
	return resp.Encode()
}

func unixNanoToTimespec(nanos int64) unix.Timespec {
	return unix.NsecToTimespec(nanos)
}
