package writelog

import (
	"testing"
	"time"
)

func testVerifier() Verifier {
	return NewVerifier(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestLog_CommitNoBufferedWrites(t *testing.T) {
	l := NewLog(testVerifier(), 0)

	outcome := l.Commit("/foo", nil)
	if !outcome.Success {
		t.Fatalf("expected trivial success, got %+v", outcome)
	}
	if outcome.CurrentWriteVerifier != "-1" {
		t.Errorf("expected sentinel verifier -1, got %q", outcome.CurrentWriteVerifier)
	}
}

func TestLog_AppendAndCommit(t *testing.T) {
	v := testVerifier()
	l := NewLog(v, 0)

	got, err := l.Append("/foo", WriteRecord{Offset: 0, Content: []byte("hello")})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if got != v {
		t.Errorf("expected append to report the log's verifier, got %q", got)
	}

	outcome := l.Commit("/foo", []string{v.String()})
	if !outcome.Success {
		t.Fatalf("expected commit success, got %+v", outcome)
	}
	if len(outcome.Merged) != 1 || string(outcome.Merged[0].Content) != "hello" {
		t.Fatalf("unexpected merged records: %+v", outcome.Merged)
	}

	// The path's entry is consumed by a successful commit.
	second := l.Commit("/foo", []string{v.String()})
	if !second.Success || len(second.Merged) != 0 {
		t.Errorf("expected an empty but successful commit after consumption, got %+v", second)
	}
}

func TestLog_CommitVerifierMismatch(t *testing.T) {
	l := NewLog(testVerifier(), 0)

	if _, err := l.Append("/foo", WriteRecord{Offset: 0, Content: []byte("x")}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	outcome := l.Commit("/foo", []string{"0.000000000"})
	if outcome.Success {
		t.Fatalf("expected verifier mismatch to fail, got %+v", outcome)
	}
	if outcome.ErrorCode != eio {
		t.Errorf("expected EIO, got %d", outcome.ErrorCode)
	}
}

func TestLog_CommitMultipleVerifiers(t *testing.T) {
	l := NewLog(testVerifier(), 0)

	outcome := l.Commit("/foo", []string{"1.0", "2.0"})
	if outcome.Success {
		t.Fatalf("expected multiple distinct verifiers to fail, got %+v", outcome)
	}
	if outcome.ErrorCode != eio {
		t.Errorf("expected EIO, got %d", outcome.ErrorCode)
	}
}

func TestLog_AppendEntrySizeCap(t *testing.T) {
	l := NewLog(testVerifier(), 4)

	if _, err := l.Append("/foo", WriteRecord{Offset: 0, Content: []byte("abcd")}); err != nil {
		t.Fatalf("append within cap failed: %v", err)
	}
	if _, err := l.Append("/foo", WriteRecord{Offset: 4, Content: []byte("e")}); err != ErrEntryTooLarge {
		t.Fatalf("expected ErrEntryTooLarge, got %v", err)
	}
}

func TestLog_Forget(t *testing.T) {
	v := testVerifier()
	l := NewLog(v, 0)

	if _, err := l.Append("/foo", WriteRecord{Offset: 0, Content: []byte("x")}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	l.Forget("/foo")

	outcome := l.Commit("/foo", nil)
	if !outcome.Success || len(outcome.Merged) != 0 {
		t.Fatalf("expected forgotten entry to commit as empty, got %+v", outcome)
	}
}
