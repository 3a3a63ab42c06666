package writebuffer

import "testing"

func TestBuffer_DirtyAndSnapshot(t *testing.T) {
	b := New()

	if b.Dirty("/foo") {
		t.Fatalf("expected a fresh path to be clean")
	}

	b.Record("/foo", "1.000000000")
	if !b.Dirty("/foo") {
		t.Fatalf("expected path to be dirty after Record")
	}

	b.Record("/foo", "1.000000000")
	snap := b.Snapshot("/foo")
	if len(snap) != 1 {
		t.Fatalf("expected a single distinct verifier, got %v", snap)
	}

	b.Record("/foo", "2.000000000")
	snap = b.Snapshot("/foo")
	if len(snap) != 2 {
		t.Fatalf("expected two distinct verifiers, got %v", snap)
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := New()
	b.Record("/foo", "1.000000000")
	b.Clear("/foo")

	if b.Dirty("/foo") {
		t.Fatalf("expected Clear to reset dirty state")
	}
	if snap := b.Snapshot("/foo"); snap != nil {
		t.Fatalf("expected empty snapshot after Clear, got %v", snap)
	}
}

func TestBuffer_IndependentPaths(t *testing.T) {
	b := New()
	b.Record("/foo", "1.000000000")

	if b.Dirty("/bar") {
		t.Fatalf("expected unrelated path to remain clean")
	}
}
