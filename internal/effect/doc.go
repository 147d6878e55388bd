// Package effect defines the closed set of side-effect operations the core
// can request from the shell, and the response payloads the shell returns.
//
// Operations are immutable value descriptions: the core never performs I/O,
// it only describes the effect it wants (an HTTP request descriptor, a timer
// duration, a storage key) and hands the description across the boundary as
// a Request tagged with a unique RequestId. The variant set is fixed at
// build time on both sides of the boundary; the wire tags in this package
// are the protocol's vocabulary.
//
// Every Response travels inside an envelope with a uniform Done flag. The
// shell sets Done=true on the final (for most operations, only) delivery for
// a RequestId; subscription-style operations deliver Done=false for each
// intermediate message. The registry retires continuations on Done for all
// kinds alike, so stream termination is part of the envelope, not something
// inferred per operation.
package effect
