// Package freesurfer implements codecs for the FreeSurfer family of
// neuroimaging file formats.
package freesurfer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Common errors
var (
	// ErrUnsupportedVariant is returned when a format variant can be decoded
	// but deliberately has no encoder (for example binary QUAD surfaces).
	ErrUnsupportedVariant = errors.New("unsupported format variant")
)

// FormatError reports a magic number, version tag, or header field that does
// not match any known variant of the format being decoded.
type FormatError struct {
	Field string  // which field was inspected, e.g. "surface magic"
	Value int64   // offending value as read
	Want  []int64 // accepted values, empty when Reason says it all
	// Reason carries the complaint when no fixed accepted set exists.
	Reason string
}

func (e *FormatError) Error() string {
	if len(e.Want) == 0 {
		return fmt.Sprintf("freesurfer: %s %d: %s", e.Field, e.Value, e.Reason)
	}
	want := make([]string, len(e.Want))
	for i, w := range e.Want {
		want[i] = strconv.FormatInt(w, 10)
	}
	return fmt.Sprintf("freesurfer: %s %d not in {%s}", e.Field, e.Value, strings.Join(want, ", "))
}

// SizeMismatchError reports a header-declared element count that disagrees
// with the elements actually present in the stream.
type SizeMismatchError struct {
	Entity   string // what was being counted, e.g. "vertex rows"
	Declared int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("freesurfer: %s: declared %d, stream holds %d", e.Entity, e.Declared, e.Actual)
}

// ValidationError reports a caller-supplied structure that violates a
// precondition of the format, detected before any bytes are written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "freesurfer: " + e.Reason
}

// ColorCollisionError reports two colortable entries that pack to the same
// label code, which would make the per-vertex labeling ambiguous.
type ColorCollisionError struct {
	Code   int32 // the shared packed code
	First  int   // struct index of the earlier entry
	Second int   // struct index of the later entry
}

func (e *ColorCollisionError) Error() string {
	return fmt.Sprintf("freesurfer: colortable structs %d and %d both pack to label code %d",
		e.First, e.Second, e.Code)
}
