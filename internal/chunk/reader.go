package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding/charmap"
)

// Reader decodes little-endian fields from an in-memory chunk.
//
// Errors are sticky: once a read runs past the end or a seek lands outside
// the data, every later read returns a zero value and Err reports the first
// failure. Parsers read a whole structure and check Err once.
type Reader struct {
	data []byte
	pos  int64
	err  error
}

// New returns a Reader over data.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadAll buffers r and returns a Reader over its contents.
func ReadAll(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk data: %w", err)
	}
	return New(data), nil
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Pos returns the current absolute offset.
func (r *Reader) Pos() int64 { return r.pos }

// Len returns the total length of the underlying data.
func (r *Reader) Len() int64 { return int64(len(r.data)) }

// Seek moves to an absolute offset. Seeking to Len is allowed.
func (r *Reader) Seek(off int64) {
	if r.err != nil {
		return
	}
	if off < 0 || off > int64(len(r.data)) {
		r.err = fmt.Errorf("seek to offset %d outside %d bytes: %w", off, len(r.data), io.ErrUnexpectedEOF)
		return
	}
	r.pos = off
}

// At seeks to off, runs fn and then returns to the current position.
func (r *Reader) At(off int64, fn func() error) error {
	back := r.pos
	r.Seek(off)
	if r.err != nil {
		return r.err
	}
	if err := fn(); err != nil {
		return err
	}
	if r.err != nil {
		return r.err
	}
	r.pos = back
	return nil
}

// Skip advances n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+int64(n) > int64(len(r.data)) {
		r.err = fmt.Errorf("read of %d bytes at offset %d: %w", n, r.pos, io.ErrUnexpectedEOF)
		return nil
	}
	b := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return b
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) I16() int16 { return int16(r.U16()) }

func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// CString reads a NUL-terminated string and consumes the terminator.
func (r *Reader) CString() string {
	if r.err != nil {
		return ""
	}
	rest := r.data[r.pos:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		r.err = fmt.Errorf("unterminated string at offset %d: %w", r.pos, io.ErrUnexpectedEOF)
		return ""
	}
	s := decodeString(rest[:end])
	r.pos += int64(end) + 1
	return s
}

// FixedString reads n bytes and strips trailing NULs.
func (r *Reader) FixedString(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return decodeString(b)
}

// Strings reads an n-byte table of NUL-separated strings.
func (r *Reader) Strings(n int) []string {
	b := r.take(n)
	if b == nil {
		return nil
	}
	parts := bytes.Split(b, []byte{0})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, decodeString(p))
	}
	return out
}

// Expect32 reads a u32 and records an error when it differs from want.
func (r *Reader) Expect32(what string, want uint32) {
	got := r.U32()
	if r.err == nil && got != want {
		r.err = &MismatchError{Field: what, Offset: r.pos - 4, Got: got, Want: want}
	}
}

// Expect16 reads a u16 and records an error when it differs from want.
func (r *Reader) Expect16(what string, want uint16) {
	got := r.U16()
	if r.err == nil && got != want {
		r.err = &MismatchError{Field: what, Offset: r.pos - 2, Got: uint32(got), Want: uint32(want)}
	}
}

// MismatchError reports a header field holding an unexpected value.
type MismatchError struct {
	Field  string
	Offset int64
	Got    uint32
	Want   uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s at offset %d: got 0x%X, want 0x%X", e.Field, e.Offset, e.Got, e.Want)
}

// Bank files are authored on Windows; names are in the ANSI code page.
func decodeString(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
