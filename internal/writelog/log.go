package writelog

import (
	"fmt"
	"sync"
)

// entry holds the buffered WriteRecords for one open path plus the
// mutex guarding them. A mutex per entry is sufficient: every operation
// under a given path reads then mutates that path's records and nothing
// else.
type entry struct {
	mu           sync.Mutex
	records      []WriteRecord
	bufferedSize uint64
}

// Log is the server-side write-log (C6): a map from open path to the
// WriteRecords buffered for it since the last successful COMMIT (or
// since the path was opened), plus the process-lifetime verifier (C7)
// every COMMIT is checked against.
type Log struct {
	verifier Verifier

	// maxEntrySize bounds the bytes a single path may have buffered at
	// once. Zero means unbounded.
	maxEntrySize uint64

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewLog constructs a Log stamped with verifier, freshly generated at
// server startup. maxEntrySize caps the bytes a single path's buffer
// may hold before Append refuses further writes (0 disables the cap).
func NewLog(verifier Verifier, maxEntrySize uint64) *Log {
	return &Log{
		verifier:     verifier,
		maxEntrySize: maxEntrySize,
		entries:      make(map[string]*entry),
	}
}

// Verifier returns the log's process-lifetime write verifier.
func (l *Log) Verifier() Verifier { return l.verifier }

// ErrEntryTooLarge is returned by Append when buffering rec would push
// path's pending bytes past the configured cap.
var ErrEntryTooLarge = fmt.Errorf("writelog: buffered entry exceeds configured size")

func (l *Log) getOrCreate(path string) *entry {
	l.mu.RLock()
	e, ok := l.entries[path]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[path]; ok {
		return e
	}
	e = &entry{}
	l.entries[path] = e
	return e
}

// Append buffers rec for path, returning its own current verifier so
// the caller can report it as the response's write_verifier.
func (l *Log) Append(path string, rec WriteRecord) (Verifier, error) {
	e := l.getOrCreate(path)

	e.mu.Lock()
	defer e.mu.Unlock()

	if l.maxEntrySize > 0 && e.bufferedSize+uint64(len(rec.Content)) > l.maxEntrySize {
		return "", ErrEntryTooLarge
	}

	e.records = append(e.records, rec)
	e.bufferedSize += uint64(len(rec.Content))

	return l.verifier, nil
}

// CommitOutcome is the result of checking a COMMIT's observed verifiers
// against the log's authority and, on success, popping and merging the
// path's buffered records for the caller to flush positionally.
type CommitOutcome struct {
	Success              bool
	Message              string
	ErrorCode            int32
	CurrentWriteVerifier string
	Merged               []WriteRecord
}

// eio is the errno COMMIT reports for a verifier mismatch, matching the
// wire protocol's convention of reporting positive POSIX errno values.
const eio = 5

// Commit checks clientVerifiers (the distinct write_verifiers the
// client observed across its buffered WRITEs for path) against the
// log's authority and, if they agree, pops and merges path's buffered
// records for the caller to flush. An empty clientVerifiers set (no
// buffered writes at all) is trivially successful and reports "-1" as
// the current verifier, matching a no-op COMMIT. Any disagreement — more
// than one distinct verifier observed, or a single verifier that
// doesn't match the log's current one — means the server restarted (or
// otherwise lost its buffer) since some of those writes were issued, so
// Commit fails without touching path's entry, and the buffered data is
// reported to the caller as lost; the writes are not re-issued.
func (l *Log) Commit(path string, clientVerifiers []string) CommitOutcome {
	switch len(clientVerifiers) {
	case 0:
		return CommitOutcome{Success: true, CurrentWriteVerifier: "-1"}
	case 1:
		if clientVerifiers[0] != string(l.verifier) {
			return CommitOutcome{
				Message:              "write_verifier does not match the server's current verifier",
				ErrorCode:            eio,
				CurrentWriteVerifier: string(l.verifier),
			}
		}
	default:
		return CommitOutcome{
			Message:              "Multiple write_verifiers detected, assuming a mismatch",
			ErrorCode:            eio,
			CurrentWriteVerifier: string(l.verifier),
		}
	}

	l.mu.Lock()
	e, ok := l.entries[path]
	if ok {
		delete(l.entries, path)
	}
	l.mu.Unlock()

	if !ok {
		return CommitOutcome{Success: true, CurrentWriteVerifier: string(l.verifier)}
	}

	e.mu.Lock()
	records := e.records
	e.mu.Unlock()

	return CommitOutcome{
		Success:              true,
		CurrentWriteVerifier: string(l.verifier),
		Merged:               MergeRecords(records),
	}
}

// Forget discards any buffered records for path without flushing them.
// The server calls it when UNLINK removes the path.
func (l *Log) Forget(path string) {
	l.mu.Lock()
	delete(l.entries, path)
	l.mu.Unlock()
}
