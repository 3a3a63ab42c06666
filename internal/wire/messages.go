package wire

import (
	"bytes"
	"io"

	"github.com/netmount/netmount/internal/protocol/xdr"
)

// Status is carried by every response. ErrorCode is a portable POSIX
// errno value (positive); the gateway (C4) returns it to the kernel
// upcall layer as a fuse.Errno.
type Status struct {
	Success   bool
	Message   string
	ErrorCode int32
}

func (s Status) encode(buf *bytes.Buffer) error {
	if err := xdr.WriteBool(buf, s.Success); err != nil {
		return err
	}
	if err := xdr.WriteXDRString(buf, s.Message); err != nil {
		return err
	}
	return xdr.WriteInt32(buf, s.ErrorCode)
}

func decodeStatus(r io.Reader) (Status, error) {
	var s Status
	var err error
	if s.Success, err = xdr.DecodeBool(r); err != nil {
		return s, err
	}
	if s.Message, err = xdr.DecodeString(r); err != nil {
		return s, err
	}
	if s.ErrorCode, err = xdr.DecodeInt32(r); err != nil {
		return s, err
	}
	return s, nil
}

// ----------------------------------------------------------------------
// PING
// ----------------------------------------------------------------------

type PingRequest struct{}

func (req *PingRequest) Encode() ([]byte, error) {
	return nil, nil
}

func DecodePingRequest(r io.Reader) (*PingRequest, error) {
	return &PingRequest{}, nil
}

type PingResponse struct {
	Status
}

func (resp *PingResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodePingResponse(r io.Reader) (*PingResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &PingResponse{Status: status}, nil
}

// ----------------------------------------------------------------------
// GETATTR
// ----------------------------------------------------------------------

type GetAttrRequest struct {
	Path string
}

func (req *GetAttrRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeGetAttrRequest(r io.Reader) (*GetAttrRequest, error) {
	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	return &GetAttrRequest{Path: path}, nil
}

type GetAttrResponse struct {
	Status
	Mode  uint32
	Nlink uint32
	Size  int64
}

func (resp *GetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, resp.Mode); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, resp.Nlink); err != nil {
		return nil, err
	}
	if err := xdr.WriteInt64(&buf, resp.Size); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeGetAttrResponse(r io.Reader) (*GetAttrResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &GetAttrResponse{Status: status}
	if resp.Mode, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if resp.Nlink, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	var size int64
	if err := readInt64(r, &size); err != nil {
		return nil, err
	}
	resp.Size = size
	return resp, nil
}

// ----------------------------------------------------------------------
// READDIR
// ----------------------------------------------------------------------

type ReadDirRequest struct {
	Path string
}

func (req *ReadDirRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeReadDirRequest(r io.Reader) (*ReadDirRequest, error) {
	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	return &ReadDirRequest{Path: path}, nil
}

type ReadDirResponse struct {
	Status
	Files []string
}

func (resp *ReadDirResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(len(resp.Files))); err != nil {
		return nil, err
	}
	for _, f := range resp.Files {
		if err := xdr.WriteXDRString(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeReadDirResponse(r io.Reader) (*ReadDirResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		f, err := xdr.DecodeString(r)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return &ReadDirResponse{Status: status, Files: files}, nil
}

// ----------------------------------------------------------------------
// OPEN
// ----------------------------------------------------------------------

type OpenRequest struct {
	Path  string
	Flags uint32
}

func (req *OpenRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, req.Flags); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeOpenRequest(r io.Reader) (*OpenRequest, error) {
	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	flags, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	return &OpenRequest{Path: path, Flags: flags}, nil
}

type OpenResponse struct {
	Status
}

func (resp *OpenResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeOpenResponse(r io.Reader) (*OpenResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &OpenResponse{Status: status}, nil
}

// ----------------------------------------------------------------------
// READ
// ----------------------------------------------------------------------

type ReadRequest struct {
	Path   string
	Offset uint64
	Size   uint32
	Flags  uint32
}

func (req *ReadRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint64(&buf, req.Offset); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, req.Size); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, req.Flags); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeReadRequest(r io.Reader) (*ReadRequest, error) {
	req := &ReadRequest{}
	var err error
	if req.Path, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	if req.Offset, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if req.Size, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if req.Flags, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return req, nil
}

type ReadResponse struct {
	Status
	Content []byte
}

func (resp *ReadResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDROpaque(&buf, resp.Content); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeReadResponse(r io.Reader) (*ReadResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	content, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, err
	}
	return &ReadResponse{Status: status, Content: content}, nil
}

// ----------------------------------------------------------------------
// WRITE (buffered / async)
// ----------------------------------------------------------------------

type WriteRequest struct {
	Path    string
	Offset  uint64
	Content []byte
}

func (req *WriteRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint64(&buf, req.Offset); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDROpaque(&buf, req.Content); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWriteRequest(r io.Reader) (*WriteRequest, error) {
	req := &WriteRequest{}
	var err error
	if req.Path, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	if req.Offset, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if req.Content, err = xdr.DecodeOpaque(r); err != nil {
		return nil, err
	}
	return req, nil
}

type WriteResponse struct {
	Status
	BytesWritten  uint32
	WriteVerifier string
}

func (resp *WriteResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, resp.BytesWritten); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(&buf, resp.WriteVerifier); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWriteResponse(r io.Reader) (*WriteResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &WriteResponse{Status: status}
	if resp.BytesWritten, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if resp.WriteVerifier, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	return resp, nil
}

// ----------------------------------------------------------------------
// COMMIT
// ----------------------------------------------------------------------

type CommitRequest struct {
	Path           string
	Flags          uint32
	WriteVerifiers []string
}

func (req *CommitRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, req.Flags); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, uint32(len(req.WriteVerifiers))); err != nil {
		return nil, err
	}
	for _, v := range req.WriteVerifiers {
		if err := xdr.WriteXDRString(&buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeCommitRequest(r io.Reader) (*CommitRequest, error) {
	req := &CommitRequest{}
	var err error
	if req.Path, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	if req.Flags, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	req.WriteVerifiers = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := xdr.DecodeString(r)
		if err != nil {
			return nil, err
		}
		req.WriteVerifiers = append(req.WriteVerifiers, v)
	}
	return req, nil
}

type CommitResponse struct {
	Status
	CurrentWriteVerifier string
}

func (resp *CommitResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(&buf, resp.CurrentWriteVerifier); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCommitResponse(r io.Reader) (*CommitResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &CommitResponse{Status: status}
	if resp.CurrentWriteVerifier, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	return resp, nil
}

// ----------------------------------------------------------------------
// RELEASE
// ----------------------------------------------------------------------

type ReleaseRequest struct {
	Path string
}

func (req *ReleaseRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeReleaseRequest(r io.Reader) (*ReleaseRequest, error) {
	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	return &ReleaseRequest{Path: path}, nil
}

type ReleaseResponse struct {
	Status
}

func (resp *ReleaseResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeReleaseResponse(r io.Reader) (*ReleaseResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &ReleaseResponse{Status: status}, nil
}

// ----------------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------------

type CreateRequest struct {
	Path string
	Mode uint32
}

func (req *CreateRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, req.Mode); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCreateRequest(r io.Reader) (*CreateRequest, error) {
	req := &CreateRequest{}
	var err error
	if req.Path, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	if req.Mode, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return req, nil
}

type CreateResponse struct {
	Status
}

func (resp *CreateResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Status.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCreateResponse(r io.Reader) (*CreateResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &CreateResponse{Status: status}, nil
}

// ----------------------------------------------------------------------
// UNLINK / MKDIR / RMDIR share the path-only request/response shape.
// ----------------------------------------------------------------------

type UnlinkRequest struct{ Path string }

func (req *UnlinkRequest) Encode() ([]byte, error) { return encodePathOnly(req.Path) }

func DecodeUnlinkRequest(r io.Reader) (*UnlinkRequest, error) {
	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	return &UnlinkRequest{Path: path}, nil
}

type UnlinkResponse struct{ Status }

func (resp *UnlinkResponse) Encode() ([]byte, error) { return encodeStatusOnly(resp.Status) }

func DecodeUnlinkResponse(r io.Reader) (*UnlinkResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &UnlinkResponse{Status: status}, nil
}

type MkdirRequest struct {
	Path string
	Mode uint32
}

func (req *MkdirRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, req.Mode); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeMkdirRequest(r io.Reader) (*MkdirRequest, error) {
	req := &MkdirRequest{}
	var err error
	if req.Path, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	if req.Mode, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return req, nil
}

type MkdirResponse struct{ Status }

func (resp *MkdirResponse) Encode() ([]byte, error) { return encodeStatusOnly(resp.Status) }

func DecodeMkdirResponse(r io.Reader) (*MkdirResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &MkdirResponse{Status: status}, nil
}

type RmdirRequest struct{ Path string }

func (req *RmdirRequest) Encode() ([]byte, error) { return encodePathOnly(req.Path) }

func DecodeRmdirRequest(r io.Reader) (*RmdirRequest, error) {
	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	return &RmdirRequest{Path: path}, nil
}

type RmdirResponse struct{ Status }

func (resp *RmdirResponse) Encode() ([]byte, error) { return encodeStatusOnly(resp.Status) }

func DecodeRmdirResponse(r io.Reader) (*RmdirResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &RmdirResponse{Status: status}, nil
}

// ----------------------------------------------------------------------
// UTIMENS
// ----------------------------------------------------------------------

type UtimensRequest struct {
	Path  string
	Atime int64 // unix nanoseconds
	Mtime int64 // unix nanoseconds
}

func (req *UtimensRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, req.Path); err != nil {
		return nil, err
	}
	if err := xdr.WriteInt64(&buf, req.Atime); err != nil {
		return nil, err
	}
	if err := xdr.WriteInt64(&buf, req.Mtime); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeUtimensRequest(r io.Reader) (*UtimensRequest, error) {
	req := &UtimensRequest{}
	var err error
	if req.Path, err = xdr.DecodeString(r); err != nil {
		return nil, err
	}
	if err := readInt64(r, &req.Atime); err != nil {
		return nil, err
	}
	if err := readInt64(r, &req.Mtime); err != nil {
		return nil, err
	}
	return req, nil
}

type UtimensResponse struct{ Status }

func (resp *UtimensResponse) Encode() ([]byte, error) { return encodeStatusOnly(resp.Status) }

func DecodeUtimensResponse(r io.Reader) (*UtimensResponse, error) {
	status, err := decodeStatus(r)
	if err != nil {
		return nil, err
	}
	return &UtimensResponse{Status: status}, nil
}

// ----------------------------------------------------------------------
// shared helpers
// ----------------------------------------------------------------------

func encodePathOnly(path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteXDRString(&buf, path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeStatusOnly(s Status) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readInt64 reads a signed 64-bit big-endian integer. The shared xdr
// package exposes DecodeInt32 but not a 64-bit signed variant, so the
// unsigned decoder is reused and reinterpreted via two's complement.
func readInt64(r io.Reader, out *int64) error {
	v, err := xdr.DecodeUint64(r)
	if err != nil {
		return err
	}
	*out = int64(v)
	return nil
}
