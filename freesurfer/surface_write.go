package freesurfer

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// WriteSurface writes s to path in the binary triangle format, or in the
// ASCII format when path ends in .asc. A .gz suffix compresses the output
// transparently. The mesh is validated before the file is created, so a
// rejected mesh leaves no partial file behind.
func WriteSurface(path string, s *Surface, opts ...WriteOption) error {
	if err := validateMesh(s); err != nil {
		return err
	}
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".asc") {
		err = encodeSurfaceASCII(w, s)
	} else {
		err = EncodeSurface(w, s, opts...)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeSurface encodes s to w in the binary triangle format. Quadrangle
// meshes have no binary encoder; convert them with QuadToTris first or the
// call fails with ErrUnsupportedVariant.
func EncodeSurface(w io.Writer, s *Surface, opts ...WriteOption) error {
	if err := validateMesh(s); err != nil {
		return err
	}
	o := applyWriteOptions(opts)

	bw := binary.NewWriter(w)
	if err := bw.WriteUint24(TriangleMagic); err != nil {
		return err
	}
	createdBy := s.CreatedBy
	if createdBy == "" {
		createdBy = o.creationLine()
	}
	if err := bw.WriteString(createdBy + "\n"); err != nil {
		return err
	}
	if err := bw.WriteString(s.Info + "\n"); err != nil {
		return err
	}

	nv := s.NumVertices()
	nf := s.NumFaces()
	if err := bw.WriteInt32(int32(nv)); err != nil {
		return err
	}
	if err := bw.WriteInt32(int32(nf)); err != nil {
		return err
	}
	for i := 0; i < nv; i++ {
		for j := 0; j < 3; j++ {
			if err := bw.WriteFloat32(float32(s.Vertices.At(i, j))); err != nil {
				return err
			}
		}
	}
	for i := 0; i < nf; i++ {
		for j := 0; j < 3; j++ {
			if err := bw.WriteInt32(int32(s.Faces.At(i, j)) - 1); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// validateMesh checks the structural preconditions shared by every surface
// encoder: a 3-column vertex matrix, an integral face matrix with three
// columns, and 1-based face indices inside the vertex range. Quadrangle
// face matrices are reported as an unsupported variant rather than invalid,
// since they carry meaning the binary triangle encoder cannot express.
func validateMesh(s *Surface) error {
	if s == nil || s.Vertices == nil {
		return &ValidationError{Reason: "surface has no vertices"}
	}
	if _, c := s.Vertices.Dims(); c != 3 {
		return &ValidationError{Reason: fmt.Sprintf("vertex matrix must have 3 columns, got %d", c)}
	}
	if s.Faces == nil {
		return nil
	}

	rows, cols := s.Faces.Dims()
	switch cols {
	case 3:
	case 4:
		return fmt.Errorf("%w: quadrangle faces cannot be encoded, convert with QuadToTris", ErrUnsupportedVariant)
	default:
		return &ValidationError{Reason: fmt.Sprintf("face matrix must have 3 columns, got %d", cols)}
	}

	nv := s.NumVertices()
	var zeroed, fractional, outOfRange int
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := s.Faces.At(i, j)
			switch {
			case v != math.Trunc(v):
				fractional++
			case v == 0:
				zeroed++
			case v < 1 || v > float64(nv):
				outOfRange++
			}
		}
	}
	if fractional > 0 {
		return &ValidationError{Reason: fmt.Sprintf("face matrix holds %d non-integer indices", fractional)}
	}
	if zeroed > 0 {
		return &ValidationError{Reason: fmt.Sprintf("face matrix holds %d zero indices, faces are 1-based", zeroed)}
	}
	if outOfRange > 0 {
		return &ValidationError{Reason: fmt.Sprintf("face matrix holds %d indices outside [1, %d]", outOfRange, nv)}
	}
	return nil
}
