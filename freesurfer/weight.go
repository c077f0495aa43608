package freesurfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// Weight is a sparse per-vertex overlay, the binary sibling of Label:
// values for a subset of vertices, every other vertex implicitly zero.
type Weight struct {
	Vertices []int32
	Values   []float64
}

// maxWeightVertex bounds the vertex index a weight file can address, since
// entries store the index in three bytes.
const maxWeightVertex = 1<<24 - 1

// ReadWeight reads a weight (paint) overlay from path.
func ReadWeight(path string) (*Weight, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	w, err := DecodeWeight(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// DecodeWeight decodes a weight stream.
func DecodeWeight(r io.Reader) (*Weight, error) {
	br := binary.NewReader(r)

	n, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading weight count: %w", err)
	}
	if n < 0 {
		return nil, &FormatError{Field: "weight count", Value: int64(n), Reason: "negative"}
	}

	w := &Weight{
		Vertices: make([]int32, n),
		Values:   make([]float64, n),
	}
	for i := 0; i < int(n); i++ {
		v, err := br.ReadUint24()
		if err == nil {
			var f float32
			if f, err = br.ReadFloat32(); err == nil {
				w.Vertices[i] = int32(v)
				w.Values[i] = float64(f)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &SizeMismatchError{Entity: "weight entries", Declared: int64(n), Actual: int64(i)}
			}
			return nil, fmt.Errorf("reading weight entries: %w", err)
		}
	}
	return w, nil
}

// WriteWeight writes w to path. The overlay is validated before the file is
// created.
func WriteWeight(path string, w *Weight) error {
	if err := validateWeight(w); err != nil {
		return err
	}
	f, err := stream.Create(path)
	if err != nil {
		return err
	}
	err = EncodeWeight(f, w)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeWeight encodes w.
func EncodeWeight(out io.Writer, w *Weight) error {
	if err := validateWeight(w); err != nil {
		return err
	}
	bw := binary.NewWriter(out)
	if err := bw.WriteInt32(int32(len(w.Vertices))); err != nil {
		return err
	}
	for i, v := range w.Vertices {
		if err := bw.WriteUint24(uint32(v)); err != nil {
			return err
		}
		if err := bw.WriteFloat32(float32(w.Values[i])); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func validateWeight(w *Weight) error {
	if w == nil {
		return &ValidationError{Reason: "weight is nil"}
	}
	if len(w.Vertices) != len(w.Values) {
		return &ValidationError{
			Reason: fmt.Sprintf("weight holds %d vertices but %d values", len(w.Vertices), len(w.Values)),
		}
	}
	seen := make(map[int32]struct{}, len(w.Vertices))
	for _, v := range w.Vertices {
		if v < 0 || v > maxWeightVertex {
			return &ValidationError{Reason: fmt.Sprintf("weight vertex %d outside [0, %d]", v, maxWeightVertex)}
		}
		if _, dup := seen[v]; dup {
			return &ValidationError{Reason: fmt.Sprintf("weight lists vertex %d twice", v)}
		}
		seen[v] = struct{}{}
	}
	return nil
}
