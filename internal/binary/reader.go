// Package binary provides low-level binary I/O operations for FreeSurfer file
// parsing and writing.
//
// Every multi-byte field in the FreeSurfer formats is big-endian regardless of
// host byte order, so unlike encoding/binary the byte order here is fixed.
// Readers and writers are sequential: the formats are flat streams and may sit
// behind a gzip filter, which rules out seeking.
package binary

import (
	"bufio"
	"io"
	"math"
)

// Reader provides methods for reading big-endian FreeSurfer binary data from
// a sequential byte stream.
type Reader struct {
	r *bufio.Reader
	n int64
}

// NewReader creates a binary reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes consumed so far.
// Useful for error messages that need a stream position.
func (r *Reader) Offset() int64 {
	return r.n
}

// ReadBytes reads exactly n bytes. A short stream yields io.ErrUnexpectedEOF
// (or io.EOF when nothing was read), which callers translate into their own
// truncation errors.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	r.n += int64(read)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadUint24 reads an unsigned 24-bit integer, the 3-byte primitive used for
// surface magic numbers and legacy element counts.
func (r *Reader) ReadUint24() (uint32, error) {
	buf, err := r.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

// ReadInt16 reads a signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads an IEEE-754 single-precision float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString reads bytes up to and including delim and returns them without
// the delimiter.
func (r *Reader) ReadString(delim byte) (string, error) {
	s, err := r.r.ReadString(delim)
	r.n += int64(len(s))
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

// Discard skips exactly n bytes.
func (r *Reader) Discard(n int) error {
	skipped, err := r.r.Discard(n)
	r.n += int64(skipped)
	return err
}

// Peek returns the next n bytes without advancing the reader.
func (r *Reader) Peek(n int) ([]byte, error) {
	return r.r.Peek(n)
}
