package binary

import (
	"bufio"
	"io"
	"math"
)

// Writer provides methods for writing big-endian FreeSurfer binary data to a
// sequential byte stream. Writes are buffered; callers must Flush before
// closing the underlying stream.
type Writer struct {
	w *bufio.Writer
	n int64
}

// NewWriter creates a binary writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.n
}

// WriteBytes writes the given bytes.
func (w *Writer) WriteBytes(data []byte) error {
	n, err := w.w.Write(data)
	w.n += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteBytes([]byte{byte(v >> 8), byte(v)})
}

// WriteUint24 writes an unsigned 24-bit integer, the 3-byte primitive used
// for surface magic numbers and legacy element counts. Values above 2^24-1
// are truncated to their low three bytes, matching the historical writers.
func (w *Writer) WriteUint24(v uint32) error {
	return w.WriteBytes([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteBytes([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// WriteInt16 writes a signed 16-bit integer.
func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v))
}

// WriteInt32 writes a signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// WriteFloat32 writes an IEEE-754 single-precision float.
func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

// WriteString writes the raw bytes of s. Terminators are the caller's
// responsibility; the formats disagree on NUL versus newline.
func (w *Writer) WriteString(s string) error {
	n, err := w.w.WriteString(s)
	w.n += int64(n)
	return err
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// Flush writes any buffered data to the underlying stream.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
