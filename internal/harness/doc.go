// Package harness executes conformance scenarios against a core.
//
// A scenario is a YAML file listing boundary calls - events to process,
// responses to resolve, view snapshots to take - executed in order against
// a fresh core. Every call's outcome is appended to a trace, and the trace
// serializes to canonical JSON so golden-file comparison is byte-stable
// across runs and platforms.
//
// The harness drives the core directly through the same three operations a
// shell uses; no real effects are performed. Response payloads come from
// the scenario file, which is exactly the point: scenarios pin down the
// engine's observable contract without a network or a clock in the loop.
package harness
