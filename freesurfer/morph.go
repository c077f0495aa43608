package freesurfer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// newCurvMagic marks the float32 curv variant. It shares its byte pattern
// with QuadMagic; in the old int16 variant the same three bytes are the
// vertex count instead, so an old file holding exactly 16777215 vertices
// cannot be told apart. The original tools live with the same ambiguity.
const newCurvMagic = 16777215

// ReadCurv reads per-vertex morphometry values (curvature, thickness,
// sulcal depth) from path. Both the float32 variant and the old int16
// hundredths variant are handled. A .gz suffix is decompressed
// transparently.
func ReadCurv(path string) ([]float64, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	vals, err := DecodeCurv(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vals, nil
}

// DecodeCurv decodes a curv stream.
func DecodeCurv(r io.Reader) ([]float64, error) {
	br := binary.NewReader(r)
	lead, err := br.ReadUint24()
	if err != nil {
		return nil, fmt.Errorf("reading curv header: %w", err)
	}
	if lead == newCurvMagic {
		return decodeNewCurv(br)
	}
	return decodeOldCurv(br, lead)
}

func decodeNewCurv(br *binary.Reader) ([]float64, error) {
	nv, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading vertex count: %w", err)
	}
	if nv < 0 {
		return nil, &FormatError{Field: "vertex count", Value: int64(nv), Reason: "negative"}
	}
	if _, err := br.ReadInt32(); err != nil { // face count, informational
		return nil, fmt.Errorf("reading face count: %w", err)
	}
	vpv, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading values per vertex: %w", err)
	}
	if vpv != 1 {
		return nil, &FormatError{Field: "values per vertex", Value: int64(vpv), Want: []int64{1}}
	}

	vals := make([]float64, nv)
	for i := range vals {
		v, err := br.ReadFloat32()
		if err != nil {
			return nil, curvSizeErr(int64(nv), int64(i), err)
		}
		vals[i] = float64(v)
	}
	return vals, nil
}

// decodeOldCurv handles the pre-magic variant, where the leading 3-byte
// integer is the vertex count itself and values are int16 hundredths.
func decodeOldCurv(br *binary.Reader, nv uint32) ([]float64, error) {
	if _, err := br.ReadUint24(); err != nil { // face count, informational
		return nil, fmt.Errorf("reading face count: %w", err)
	}
	vals := make([]float64, nv)
	for i := range vals {
		v, err := br.ReadInt16()
		if err != nil {
			return nil, curvSizeErr(int64(nv), int64(i), err)
		}
		vals[i] = float64(v) / 100
	}
	return vals, nil
}

func curvSizeErr(declared, got int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &SizeMismatchError{Entity: "curv values", Declared: declared, Actual: got}
	}
	return fmt.Errorf("reading curv values: %w", err)
}

// WriteCurv writes per-vertex values to path in the float32 curv format.
// The header's face count defaults to 0; pass WithFaceCount to record the
// source mesh size. A .gz suffix compresses the output transparently.
func WriteCurv(path string, values []float64, opts ...WriteOption) error {
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	err = EncodeCurv(w, values, opts...)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeCurv encodes values to w in the float32 curv format.
func EncodeCurv(w io.Writer, values []float64, opts ...WriteOption) error {
	o := applyWriteOptions(opts)

	bw := binary.NewWriter(w)
	if err := bw.WriteUint24(newCurvMagic); err != nil {
		return err
	}
	if err := bw.WriteInt32(int32(len(values))); err != nil {
		return err
	}
	if err := bw.WriteInt32(int32(o.faceCount)); err != nil {
		return err
	}
	if err := bw.WriteInt32(1); err != nil {
		return err
	}
	for _, v := range values {
		if err := bw.WriteFloat32(float32(v)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadMorph reads per-vertex morphometry from path regardless of transport:
// .mgh and .mgz files are unpacked from their volume container, everything
// else is read as curv.
func ReadMorph(path string) ([]float64, error) {
	if morphUsesVolume(path) {
		vol, err := ReadVolume(path)
		if err != nil {
			return nil, err
		}
		return vol.Data, nil
	}
	return ReadCurv(path)
}

// WriteMorph writes per-vertex morphometry to path, packing the values into
// an MGH volume of shape (n, 1, 1, 1) when path ends in .mgh or .mgz and
// into the curv format otherwise.
func WriteMorph(path string, values []float64, opts ...WriteOption) error {
	if morphUsesVolume(path) {
		vol := &Volume{
			Dims: [4]int{len(values), 1, 1, 1},
			Type: TypeFloat,
			Data: values,
		}
		return WriteVolume(path, vol)
	}
	return WriteCurv(path, values, opts...)
}

func morphUsesVolume(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".mgh") || strings.HasSuffix(p, ".mgz") ||
		strings.HasSuffix(p, ".mgh.gz")
}
