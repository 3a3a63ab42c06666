// Package writelog implements the server-side write-log (C6) and
// verifier authority (C7): a mapping from open path to pending
// WriteRecords, resolved on COMMIT via interval-merge and positional
// write, guarded by a process-lifetime write verifier that detects
// crash-induced data loss across a server restart.
package writelog

import (
	"fmt"
	"time"
)

// Verifier is a single opaque string fixed at server process start and
// stable for the server's lifetime (C7). A server restart produces a
// different verifier, so any COMMIT referencing writes buffered before
// the restart fails verification.
type Verifier string

// NewVerifier generates a process-lifetime-unique verifier from the
// current time, in the style of NFSv3's write verifier (RFC 1813 §3.3.7).
func NewVerifier(now time.Time) Verifier {
	return Verifier(fmt.Sprintf("%d.%09d", now.Unix(), now.Nanosecond()))
}

func (v Verifier) String() string { return string(v) }
