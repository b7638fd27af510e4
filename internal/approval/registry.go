// Package approval implements the propose/approve/execute lifecycle shared by
// pending SSH commands and remediation actions. The registry is generic over
// the payload: the command path observes only the approved/executed booleans,
// the remediation path exposes the full state machine.
package approval

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a pending entity.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusFailed
}

// Entry wraps a payload with its lifecycle state.
type Entry[P any] struct {
	ID         string    `json:"id"`
	Payload    P         `json:"payload"`
	Status     Status    `json:"status"`
	ProposedAt time.Time `json:"proposed_at"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	ApprovedAt time.Time `json:"approved_at,omitempty"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Approved reports whether the entry has passed the approval gate.
func (e *Entry[P]) Approved() bool {
	switch e.Status {
	case StatusApproved, StatusExecuting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Executed reports whether execution has finished successfully.
func (e *Entry[P]) Executed() bool {
	return e.Status == StatusCompleted
}

// Options tune registry behavior per workflow.
type Options struct {
	// IDPrefix is prepended to generated ids (e.g. "cmd_").
	IDPrefix string
	// DeleteOnComplete removes completed entries instead of retaining them.
	DeleteOnComplete bool
	// DeleteOnReject removes rejected entries instead of retaining them.
	DeleteOnReject bool
	// TTL bounds how long undecided or retained entries live. Zero means
	// the 24h default.
	TTL time.Duration
}

// Registry is a mutex-guarded map of pending entities. All state transitions
// are serialized by a single lock, so an entry observed as approved can never
// regress to proposed.
type Registry[P any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[P]
	opts    Options
}

// NewRegistry creates an empty registry.
func NewRegistry[P any](opts Options) *Registry[P] {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Registry[P]{
		entries: make(map[string]*Entry[P]),
		opts:    opts,
	}
}

// Propose inserts a new entry in PROPOSED state and returns it.
// Ids are opaque short tokens, unique over the process lifetime.
func (r *Registry[P]) Propose(payload P) *Entry[P] {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &Entry[P]{
		ID:         r.opts.IDPrefix + newToken(),
		Payload:    payload,
		Status:     StatusProposed,
		ProposedAt: time.Now().UTC(),
	}
	r.entries[e.ID] = e
	return e
}

// Approve moves an entry to APPROVED. Approving an already-approved entry is
// a no-op success; approving an executed or otherwise terminal entry fails.
func (r *Registry[P]) Approve(id, approver string) (*Entry[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("approval %s not found", id)
	}
	switch e.Status {
	case StatusProposed:
		e.Status = StatusApproved
		e.ApprovedBy = approver
		e.ApprovedAt = time.Now().UTC()
		return e, nil
	case StatusApproved:
		// Idempotent
		return e, nil
	default:
		return nil, fmt.Errorf("approval %s is %s, cannot approve", id, e.Status)
	}
}

// Reject moves a PROPOSED entry to REJECTED. Rejecting from any other state
// fails.
func (r *Registry[P]) Reject(id, approver string) (*Entry[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("approval %s not found", id)
	}
	if e.Status != StatusProposed {
		return nil, fmt.Errorf("approval %s is %s, cannot reject", id, e.Status)
	}
	e.Status = StatusRejected
	e.ApprovedBy = approver
	e.ApprovedAt = time.Now().UTC()
	if r.opts.DeleteOnReject {
		delete(r.entries, id)
	}
	return e, nil
}

// Begin moves an APPROVED entry to EXECUTING.
func (r *Registry[P]) Begin(id string) (*Entry[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("approval %s not found", id)
	}
	if e.Status != StatusApproved {
		return nil, fmt.Errorf("approval %s is %s, cannot execute", id, e.Status)
	}
	e.Status = StatusExecuting
	e.ExecutedAt = time.Now().UTC()
	return e, nil
}

// Finish moves an EXECUTING entry to COMPLETED or FAILED. Failed entries
// keep errMsg; completed ones are dropped when DeleteOnComplete is set.
func (r *Registry[P]) Finish(id string, ok bool, errMsg string) (*Entry[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.entries[id]
	if !found {
		return nil, fmt.Errorf("approval %s not found", id)
	}
	if e.Status != StatusExecuting {
		return nil, fmt.Errorf("approval %s is %s, cannot finish", id, e.Status)
	}
	if ok {
		e.Status = StatusCompleted
		if r.opts.DeleteOnComplete {
			delete(r.entries, id)
		}
	} else {
		e.Status = StatusFailed
		e.Error = errMsg
	}
	return e, nil
}

// Rollback returns an EXECUTING entry to APPROVED, clearing the execution
// timestamp. Used when dispatch was cancelled before completing so the
// approval can be retried.
func (r *Registry[P]) Rollback(id string) (*Entry[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("approval %s not found", id)
	}
	if e.Status != StatusExecuting {
		return nil, fmt.Errorf("approval %s is %s, cannot roll back", id, e.Status)
	}
	e.Status = StatusApproved
	e.ExecutedAt = time.Time{}
	return e, nil
}

// Get returns an entry by id.
func (r *Registry[P]) Get(id string) (*Entry[P], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Pending returns all non-terminal entries, oldest first.
func (r *Registry[P]) Pending() []*Entry[P] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry[P]
	for _, e := range r.entries {
		if !e.Status.Terminal() {
			out = append(out, e)
		}
	}
	sortByProposedAt(out)
	return out
}

// All returns every retained entry, oldest first.
func (r *Registry[P]) All() []*Entry[P] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry[P], 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sortByProposedAt(out)
	return out
}

// Len returns the number of retained entries.
func (r *Registry[P]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Purge removes entries older than maxAge. Purged ids cannot be resurrected.
func (r *Registry[P]) Purge(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, e := range r.entries {
		if e.ProposedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// StartReaper runs a background sweep that purges entries past the TTL.
func (r *Registry[P]) StartReaper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.Purge(r.opts.TTL)
			}
		}
	}()
}

// newToken returns an 8-hex-char random token. Uniqueness holds over the
// process lifetime; tokens from an earlier run are not recognized.
func newToken() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// sortByProposedAt orders oldest first. Insertion sort, the map is small.
func sortByProposedAt[P any](entries []*Entry[P]) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].ProposedAt.Before(entries[j-1].ProposedAt); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
