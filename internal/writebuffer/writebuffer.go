// Package writebuffer implements the client-side write buffer (C5): for
// each currently-open path, the set of write_verifier values observed
// in WRITE_ASYNC responses since the path was opened (or since its last
// COMMIT). RELEASE consults this set to decide whether a COMMIT is
// needed at all, and if so, supplies it as that COMMIT's
// write_verifiers argument.
package writebuffer

import "sync"

// Buffer is mutable per-path state shared between concurrent upcalls on
// the same open file, so every access is guarded by a mutex.
type Buffer struct {
	mu        sync.Mutex
	verifiers map[string]map[string]struct{}
}

// New constructs an empty write buffer.
func New() *Buffer {
	return &Buffer{verifiers: make(map[string]map[string]struct{})}
}

// Record notes that a WRITE_ASYNC against path returned verifier.
func (b *Buffer) Record(path, verifier string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.verifiers[path]
	if !ok {
		set = make(map[string]struct{})
		b.verifiers[path] = set
	}
	set[verifier] = struct{}{}
}

// Dirty reports whether any WRITE_ASYNC has been recorded for path
// since it was last cleared.
func (b *Buffer) Dirty(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.verifiers[path]
	return ok && len(set) > 0
}

// Snapshot returns the distinct verifiers observed for path, suitable
// for use as a COMMIT request's write_verifiers list. It does not clear
// the recorded set; call Clear once the COMMIT succeeds.
func (b *Buffer) Snapshot(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.verifiers[path]
	if !ok || len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// Clear discards path's recorded verifiers, for use once its buffered
// writes have been committed (or abandoned on close).
func (b *Buffer) Clear(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.verifiers, path)
}
