// Package shell is the reference host environment for a husk core: it
// decodes request batches, performs the described effects for real, and
// resolves the results back into the core from worker goroutines.
//
// The engine never performs I/O; everything here is the collaborating side
// of the boundary protocol. The dispatcher is deliberately aggressive about
// concurrency - every effect runs on its own goroutine and resolves whenever
// it finishes - because the core's critical section is what provides
// ordering, and exercising that from many threads is the point of a
// reference shell.
package shell
