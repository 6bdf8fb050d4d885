package ir

import (
	"sync"
	"time"
)

// Outcome classifies one execution record entry.
type Outcome string

const (
	// OutcomeCreated marks a resource this run brought into existence.
	// Only these entries are eligible for rollback.
	OutcomeCreated Outcome = "created"
	// OutcomeAdopted marks a resource that already existed and was matched
	// by natural key. Rollback never touches adopted resources.
	OutcomeAdopted Outcome = "adopted"
	OutcomeFailed  Outcome = "failed"
	// OutcomeDeleted and OutcomeDeleteFailed are appended by rollback and
	// destroy sweeps.
	OutcomeDeleted      Outcome = "deleted"
	OutcomeDeleteFailed Outcome = "delete_failed"
)

// RecordEntry is a single audit event.
type RecordEntry struct {
	Name      string    `yaml:"name"`
	Kind      Kind      `yaml:"kind"`
	Outcome   Outcome   `yaml:"outcome"`
	ID        string    `yaml:"id,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
	Err       string    `yaml:"error,omitempty"`
}

// Record is the append-only audit trail of a run. Append order is
// completion order, which makes the record the single source of truth for
// rollback sequencing.
type Record struct {
	mu      sync.Mutex
	entries []RecordEntry
}

func NewRecord() *Record {
	return &Record{}
}

// Append adds one entry, stamping the time if unset.
func (r *Record) Append(e RecordEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the trail in append order.
func (r *Record) Entries() []RecordEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordEntry(nil), r.entries...)
}

// Len returns the number of entries appended so far.
func (r *Record) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
