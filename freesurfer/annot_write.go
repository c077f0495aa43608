package freesurfer

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// WriteAnnot writes a to path. The annotation is validated before the file
// is created.
func WriteAnnot(path string, a *Annotation) error {
	if err := validateAnnot(a); err != nil {
		return err
	}
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	err = EncodeAnnot(w, a)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeAnnot encodes a to w. Embedded colortables are always emitted in
// the extended encoding, whatever encoding they were decoded from.
func EncodeAnnot(w io.Writer, a *Annotation) error {
	if err := validateAnnot(a); err != nil {
		return err
	}

	bw := binary.NewWriter(w)
	if err := bw.WriteInt32(int32(len(a.Vertices))); err != nil {
		return err
	}
	for i, v := range a.Vertices {
		if err := bw.WriteInt32(v); err != nil {
			return err
		}
		if err := bw.WriteInt32(a.Codes[i]); err != nil {
			return err
		}
	}

	if a.Table == nil {
		if err := bw.WriteInt32(0); err != nil {
			return err
		}
		return bw.Flush()
	}
	if err := bw.WriteInt32(1); err != nil {
		return err
	}
	if err := encodeColorTable(bw, a.Table); err != nil {
		return err
	}
	return bw.Flush()
}

func encodeColorTable(bw *binary.Writer, t *ColorTable) error {
	if err := bw.WriteInt32(-ctabVersion); err != nil {
		return err
	}
	maxIndex := -1
	for _, e := range t.Entries {
		if e.Index > maxIndex {
			maxIndex = e.Index
		}
	}
	if err := bw.WriteInt32(int32(maxIndex + 1)); err != nil {
		return err
	}
	if err := writeCountedString(bw, t.FileName); err != nil {
		return err
	}
	if err := bw.WriteInt32(int32(len(t.Entries))); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if err := bw.WriteInt32(int32(e.Index)); err != nil {
			return err
		}
		if err := writeCountedString(bw, e.Name); err != nil {
			return err
		}
		for _, c := range [4]uint8{e.R, e.G, e.B, e.Flag} {
			if err := bw.WriteInt32(int32(c)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateAnnot(a *Annotation) error {
	if a == nil {
		return &ValidationError{Reason: "annotation is nil"}
	}
	if len(a.Vertices) != len(a.Codes) {
		return &ValidationError{
			Reason: fmt.Sprintf("annotation holds %d vertices but %d codes", len(a.Vertices), len(a.Codes)),
		}
	}
	if a.Table == nil {
		return nil
	}
	seen := make(map[int]struct{}, len(a.Table.Entries))
	for _, e := range a.Table.Entries {
		if e.Index < 0 {
			return &ValidationError{Reason: fmt.Sprintf("colortable struct index %d is negative", e.Index)}
		}
		if _, dup := seen[e.Index]; dup {
			return &ValidationError{Reason: fmt.Sprintf("duplicate colortable struct index %d", e.Index)}
		}
		seen[e.Index] = struct{}{}
	}
	_, err := a.Table.CodeMap()
	return err
}

// writeCountedString writes a length-prefixed string with a trailing NUL,
// the length counting the NUL.
func writeCountedString(bw *binary.Writer, s string) error {
	if err := bw.WriteInt32(int32(len(s) + 1)); err != nil {
		return err
	}
	if err := bw.WriteString(s); err != nil {
		return err
	}
	return bw.WriteUint8(0)
}
