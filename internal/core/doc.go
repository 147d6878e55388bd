// Package core implements the husk execution engine.
//
// The core runs application update logic as a single logical thread of
// control. Update logic is synchronous and pure with respect to I/O: instead
// of performing effects it describes them through capability calls, each of
// which registers a continuation, appends a Request to the current batch,
// and returns immediately. The shell performs the effect out-of-process and
// reports back through Resolve, which resumes exactly the continuation the
// request id names.
//
// ARCHITECTURE:
//
// Single critical section:
// Every entry into update-related code - ProcessEvent, Resolve, and the
// continuation resumption inside Resolve - runs under one write lock. The
// shell may call from any number of OS threads; the lock admits them one at
// a time, so update logic never executes in parallel and the model is never
// observed mid-mutation. View takes the read lock only: it computes a
// projection and performs no mutation, so concurrent snapshots are safe.
//
// Suspension without blocking:
// A capability call is the only suspension point. "Suspending" is literal
// continuation-passing: the remainder of the update logic is captured as a
// closure in the registry, tagged by request id, and the engine call returns
// to the shell with the batch of requests emitted so far. No engine call
// ever blocks waiting for I/O.
//
// Ordering:
// Requests emitted during one ProcessEvent/Resolve call are returned in
// exact emission order. Across calls the only guarantee is the serialization
// the critical section provides: update logic observes responses in lock
// admission order, not in the order the shell completed the effects.
//
// A running flag tracks the Idle/Running state of the scheduler. Entering a
// step while one is already running means update-related code escaped the
// critical section; that is an internal invariant violation and panics
// rather than limping on with a torn model.
package core
