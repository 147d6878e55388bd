// Package wire implements the binary encoding used at the core/shell boundary.
//
// The format is deterministic and self-describing: every value is written as
// an explicit tag or fixed-width integer followed by length-prefixed bytes,
// so both sides of the boundary can decode without out-of-band schema
// negotiation. All integers are big-endian. Strings and byte blobs are a
// 4-byte length prefix followed by the raw bytes, with the length capped at
// MaxChunkSize to bound allocation from hostile input.
//
// Decoding is strict in both directions:
//   - reading past the end of the buffer fails with ErrTruncated
//   - bytes left over after the expected value fails with ErrTrailingBytes
//
// A decoder therefore never "succeeds" on a prefix of a valid encoding, and
// never silently ignores garbage appended to one. Callers finish every decode
// with Reader.Finish.
package wire
