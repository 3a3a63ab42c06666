package server

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/netmount/netmount/internal/wire"
)

func byteReader(b []byte) io.Reader { return bytes.NewReader(b) }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, 0, nil), dir
}

func call(t *testing.T, s *Server, op wire.Opcode, payload []byte) []byte {
	t.Helper()
	resp, err := s.dispatch(context.Background(), op, payload)
	if err != nil {
		t.Fatalf("dispatch(%s) failed: %v", op, err)
	}
	return resp
}

func TestHandleCreateAndGetAttr(t *testing.T) {
	s, _ := newTestServer(t)

	createReq := &wire.CreateRequest{Path: "/foo.txt", Mode: 0644}
	body, err := createReq.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	respBody := call(t, s, wire.OpCreate, body)
	createResp, err := wire.DecodeCreateResponse(byteReader(respBody))
	if err != nil || !createResp.Success {
		t.Fatalf("create failed: resp=%+v err=%v", createResp, err)
	}

	attrReq := &wire.GetAttrRequest{Path: "/foo.txt"}
	body, _ = attrReq.Encode()
	respBody = call(t, s, wire.OpGetAttr, body)
	attrResp, err := wire.DecodeGetAttrResponse(byteReader(respBody))
	if err != nil || !attrResp.Success {
		t.Fatalf("getattr failed: resp=%+v err=%v", attrResp, err)
	}
	if attrResp.Size != 0 {
		t.Errorf("expected empty file size 0, got %d", attrResp.Size)
	}
}

func TestHandleGetAttr_MissingPath(t *testing.T) {
	s, _ := newTestServer(t)

	req := &wire.GetAttrRequest{Path: "/missing"}
	body, _ := req.Encode()
	respBody := call(t, s, wire.OpGetAttr, body)
	resp, err := wire.DecodeGetAttrResponse(byteReader(respBody))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected failure for missing path")
	}
	if resp.ErrorCode != int32(2) { // ENOENT
		t.Errorf("expected ENOENT, got %d", resp.ErrorCode)
	}
}

func TestHandleWriteThenCommit_StableWrite(t *testing.T) {
	s, dir := newTestServer(t)

	createReq := &wire.CreateRequest{Path: "/f", Mode: 0644}
	body, _ := createReq.Encode()
	call(t, s, wire.OpCreate, body)

	writeReq1 := &wire.WriteRequest{Path: "/f", Offset: 0, Content: []byte("AAAA")}
	body, _ = writeReq1.Encode()
	respBody := call(t, s, wire.OpWriteAsync, body)
	writeResp1, err := wire.DecodeWriteResponse(byteReader(respBody))
	if err != nil || !writeResp1.Success {
		t.Fatalf("write 1 failed: resp=%+v err=%v", writeResp1, err)
	}

	writeReq2 := &wire.WriteRequest{Path: "/f", Offset: 4, Content: []byte("BBBB")}
	body, _ = writeReq2.Encode()
	respBody = call(t, s, wire.OpWriteAsync, body)
	writeResp2, err := wire.DecodeWriteResponse(byteReader(respBody))
	if err != nil || !writeResp2.Success {
		t.Fatalf("write 2 failed: resp=%+v err=%v", writeResp2, err)
	}
	if writeResp1.WriteVerifier != writeResp2.WriteVerifier {
		t.Fatalf("expected both writes to observe the same verifier")
	}

	commitReq := &wire.CommitRequest{Path: "/f", WriteVerifiers: []string{writeResp1.WriteVerifier}}
	body, _ = commitReq.Encode()
	respBody = call(t, s, wire.OpCommit, body)
	commitResp, err := wire.DecodeCommitResponse(byteReader(respBody))
	if err != nil || !commitResp.Success {
		t.Fatalf("commit failed: resp=%+v err=%v", commitResp, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "f"))
	if err != nil {
		t.Fatalf("reading backing file: %v", err)
	}
	if string(data) != "AAAABBBB" {
		t.Errorf("expected AAAABBBB, got %q", data)
	}
}

func TestHandleCommit_VerifierMismatch(t *testing.T) {
	s, _ := newTestServer(t)

	createReq := &wire.CreateRequest{Path: "/f", Mode: 0644}
	body, _ := createReq.Encode()
	call(t, s, wire.OpCreate, body)

	writeReq := &wire.WriteRequest{Path: "/f", Offset: 0, Content: []byte("x")}
	body, _ = writeReq.Encode()
	call(t, s, wire.OpWriteAsync, body)

	commitReq := &wire.CommitRequest{Path: "/f", WriteVerifiers: []string{"stale-verifier"}}
	body, _ = commitReq.Encode()
	respBody := call(t, s, wire.OpCommit, body)
	commitResp, err := wire.DecodeCommitResponse(byteReader(respBody))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if commitResp.Success {
		t.Fatalf("expected mismatch to fail commit")
	}
	if commitResp.ErrorCode != int32(syscall.EIO) {
		t.Errorf("expected EIO, got %d", commitResp.ErrorCode)
	}
}

func TestHandleReadBeyondEOF(t *testing.T) {
	s, dir := newTestServer(t)

	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("0123456789"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	readReq := &wire.ReadRequest{Path: "/f", Offset: 20, Size: 4096}
	body, _ := readReq.Encode()
	respBody := call(t, s, wire.OpRead, body)
	readResp, err := wire.DecodeReadResponse(byteReader(respBody))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(readResp.Content) != 0 {
		t.Errorf("expected zero bytes past EOF, got %d", len(readResp.Content))
	}
}
