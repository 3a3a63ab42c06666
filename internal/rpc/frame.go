package rpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/netmount/netmount/pkg/bufpool"
)

// Record marking, in the style of ONC-RPC over TCP (RFC 5531 §10): each
// message is sent as a sequence of one or more fragments, each prefixed
// by a 4-byte header whose high bit marks the last fragment of the
// message and whose low 31 bits carry the fragment's byte length. The
// wire schema (C1) never needs more than one fragment per message, so
// every frame written here sets the last-fragment bit.

const (
	lastFragmentFlag uint32 = 1 << 31
	maxFrameBody            = 16 << 20 // 16MiB, generous over MaxReadWriteSize
)

// WriteFrame writes body as a single last-fragment record.
func WriteFrame(w io.Writer, body []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentFlag|uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads a single last-fragment record. Multi-fragment messages
// are rejected as malformed since nothing in this protocol ever sends
// more than one fragment.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	raw := binary.BigEndian.Uint32(header[:])
	if raw&lastFragmentFlag == 0 {
		return nil, fmt.Errorf("unsupported multi-fragment frame")
	}

	length := raw &^ lastFragmentFlag
	if length > maxFrameBody {
		return nil, fmt.Errorf("frame body %d exceeds maximum %d", length, maxFrameBody)
	}
	if length == 0 {
		return nil, nil
	}

	buf := bufpool.GetUint32(length)
	if _, err := io.ReadFull(r, buf); err != nil {
		bufpool.Put(buf)
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return buf, nil
}
