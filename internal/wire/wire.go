package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxChunkSize is the maximum length accepted for any single length-prefixed
// string or byte blob (16 MiB). Lengths beyond this are rejected before
// allocation.
const MaxChunkSize = 16 << 20

var (
	// ErrTruncated reports a buffer exhausted mid-decode.
	ErrTruncated = errors.New("wire: truncated input")

	// ErrTrailingBytes reports bytes left over after a complete decode.
	ErrTrailingBytes = errors.New("wire: trailing bytes after value")

	// ErrBadTag reports a type or variant tag unknown to this build.
	ErrBadTag = errors.New("wire: unknown tag")

	// ErrTooLarge reports a length prefix exceeding MaxChunkSize.
	ErrTooLarge = errors.New("wire: length prefix exceeds maximum")
)

// Writer accumulates an encoded value. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with capacity for a typical small message.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 128)}
}

// Bytes returns the encoded buffer. The Writer must not be reused after.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// U8 appends a single byte.
func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

// U16 appends a big-endian 16-bit integer.
func (w *Writer) U16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// U32 appends a big-endian 32-bit integer.
func (w *Writer) U32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// U64 appends a big-endian 64-bit integer.
func (w *Writer) U64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// I64 appends a big-endian 64-bit integer in two's complement.
func (w *Writer) I64(v int64) {
	w.U64(uint64(v))
}

// Bool appends 0x01 for true, 0x00 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// String appends a length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Blob appends a length-prefixed byte blob. A nil blob encodes identically
// to an empty one.
func (w *Writer) Blob(b []byte) {
	w.U32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader decodes a buffer produced by Writer. Methods return an error on the
// first malformed read; subsequent reads after an error also fail, so callers
// may check errors once per logical value if convenient.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a Reader over buf. The Reader does not copy buf; callers
// must not mutate it during decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Finish verifies the entire buffer was consumed. Every top-level decode
// must end with Finish so over-long input is rejected.
func (r *Reader) Finish() error {
	if rem := r.Remaining(); rem != 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, rem)
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a big-endian 16-bit integer.
func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// U32 reads a big-endian 32-bit integer.
func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// U64 reads a big-endian 64-bit integer.
func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// I64 reads a big-endian 64-bit integer in two's complement.
func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// Bool reads a boolean byte. Any value other than 0x00 or 0x01 is rejected,
// keeping the encoding canonical.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte 0x%02x", ErrBadTag, v)
	}
}

func (r *Reader) lengthPrefix() (int, error) {
	n, err := r.U32()
	if err != nil {
		return 0, err
	}
	if n > MaxChunkSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooLarge, n, MaxChunkSize)
	}
	return int(n), nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	n, err := r.lengthPrefix()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Blob reads a length-prefixed byte blob. The returned slice is a copy, so
// it stays valid after the underlying buffer is released.
func (r *Reader) Blob() ([]byte, error) {
	n, err := r.lengthPrefix()
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
