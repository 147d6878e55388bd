// Package registry owns the mapping from in-flight request ids to suspended
// continuations.
//
// The registry is the single source of truth for continuation lifetime: a
// continuation exists from Register until Retire (finite operations and
// terminated streams) or Drain (core teardown). Ids are allocated
// monotonically starting at 1 and are never reused for the lifetime of the
// owning core; 0 is reserved as invalid.
//
// The registry is not safe for concurrent use on its own. The core's
// critical section serializes every call, which is also what guarantees a
// continuation is resumed at most once per response.
package registry

import (
	"fmt"

	"github.com/roach88/husk/internal/effect"
)

// Continuation resumes suspended update logic with one response. It runs
// inside the core's critical section and may register further requests.
type Continuation func(res effect.Response)

// Entry is one registered continuation plus the metadata needed to decode
// and route its responses.
type Entry struct {
	// Kind of the originating operation; responses are type-checked
	// against it before the continuation runs.
	Kind effect.Kind

	// Streaming entries survive Done=false resolutions; finite entries
	// retire on their first resolution regardless of the flag.
	Streaming bool

	// Resume is the suspended remainder of update logic.
	Resume Continuation
}

// Registry maps request ids to entries.
type Registry struct {
	next    uint32
	entries map[uint32]Entry
}

// New creates an empty registry. The first allocated id is 1.
func New() *Registry {
	return &Registry{entries: make(map[uint32]Entry)}
}

// Register allocates the next request id and stores the entry under it.
//
// A collision with a live id means the allocator has wrapped into an
// outstanding request or the registry's state is corrupt; both are scheduler
// bugs, so Register panics rather than continuing with a protocol the shell
// can no longer trust.
func (r *Registry) Register(e Entry) uint32 {
	r.next++
	id := r.next
	if id == 0 {
		panic("registry: request id space exhausted")
	}
	if _, exists := r.entries[id]; exists {
		panic(fmt.Sprintf("registry: duplicate allocation of request id %d", id))
	}
	r.entries[id] = e
	return id
}

// Allocate reserves the next request id without registering a continuation.
// Fire-and-forget operations (render, publish) consume ids from the same
// monotonic sequence so every request on the wire stays uniquely correlated,
// but a resolve against such an id takes the unknown-id path.
func (r *Registry) Allocate() uint32 {
	r.next++
	if r.next == 0 {
		panic("registry: request id space exhausted")
	}
	return r.next
}

// Lookup returns the entry for id, reporting whether it is live.
func (r *Registry) Lookup(id uint32) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Retire removes id's entry. Retiring an unknown id is a no-op; the caller
// decides whether that deserves a diagnostic.
func (r *Registry) Retire(id uint32) {
	delete(r.entries, id)
}

// Drain removes every entry without resuming any of them and returns how
// many were dropped. Used at core teardown: cancellation is by discard, not
// by signal.
func (r *Registry) Drain() int {
	n := len(r.entries)
	clear(r.entries)
	return n
}

// Len reports the number of live continuations.
func (r *Registry) Len() int {
	return len(r.entries)
}
