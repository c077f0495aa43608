package freesurfer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// Surface magic numbers, stored as 3-byte big-endian integers at the start of
// every binary surface file.
const (
	// TriangleMagic marks the current triangle surface format.
	TriangleMagic = 16777214
	// QuadMagic marks the legacy quadrangle format with int16/100 coordinates.
	QuadMagic = 16777215
	// NewQuadMagic marks the quadrangle format with float32 coordinates.
	NewQuadMagic = 16777213
)

// Surface is a triangulated cortical mesh.
//
// Vertices is an n×3 matrix of coordinates. Faces is an m×3 matrix of
// 1-based vertex indices; quadrangle files are triangulated on decode.
// Index 0 never appears in Faces; it is reserved so that decoders and
// encoders can shift between the 1-based in-memory form and the 0-based
// on-disk form without ambiguity.
type Surface struct {
	Vertices *mat.Dense
	Faces    *mat.Dense

	// CreatedBy and Info round-trip the two free-text header lines of the
	// triangle format. Both are empty for quadrangle files.
	CreatedBy string
	Info      string
}

// NumVertices returns the number of mesh vertices.
func (s *Surface) NumVertices() int {
	if s.Vertices == nil {
		return 0
	}
	r, _ := s.Vertices.Dims()
	return r
}

// NumFaces returns the number of mesh faces.
func (s *Surface) NumFaces() int {
	if s.Faces == nil {
		return 0
	}
	r, _ := s.Faces.Dims()
	return r
}

// ReadSurface reads a surface mesh from path. Files ending in .asc are
// parsed as ASCII surfaces, everything else as binary with the variant
// chosen by magic number. A .gz suffix is decompressed transparently.
func ReadSurface(path string) (*Surface, error) {
	if strings.HasSuffix(strings.ToLower(path), ".asc") {
		return readSurfaceASCII(path)
	}
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s, err := DecodeSurface(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DecodeSurface decodes a binary surface mesh from r. The variant is chosen
// by the leading 3-byte magic number; quadrangle variants are triangulated
// on the way in.
func DecodeSurface(r io.Reader) (*Surface, error) {
	br := binary.NewReader(r)
	magic, err := br.ReadUint24()
	if err != nil {
		return nil, fmt.Errorf("reading surface magic: %w", err)
	}
	switch magic {
	case TriangleMagic:
		return decodeTriangleSurface(br)
	case QuadMagic, NewQuadMagic:
		return decodeQuadSurface(br, magic)
	default:
		return nil, &FormatError{
			Field: "surface magic",
			Value: int64(magic),
			Want:  []int64{TriangleMagic, QuadMagic, NewQuadMagic},
		}
	}
}

func decodeTriangleSurface(br *binary.Reader) (*Surface, error) {
	createdBy, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading creation line: %w", err)
	}
	info, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading info line: %w", err)
	}

	nv, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading vertex count: %w", err)
	}
	nf, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading face count: %w", err)
	}
	if nv < 0 {
		return nil, &FormatError{Field: "vertex count", Value: int64(nv), Reason: "negative"}
	}
	if nf < 0 {
		return nil, &FormatError{Field: "face count", Value: int64(nf), Reason: "negative"}
	}

	verts, err := readCoordRows(br, int(nv))
	if err != nil {
		return nil, err
	}

	var faces *mat.Dense
	if nf > 0 {
		faces = mat.NewDense(int(nf), 3, nil)
	}
	for i := 0; i < int(nf); i++ {
		for j := 0; j < 3; j++ {
			v, err := br.ReadInt32()
			if err != nil {
				return nil, faceSizeErr(int64(nf), int64(i), err)
			}
			if v < 0 || v >= nv {
				return nil, &FormatError{
					Field:  "face vertex index",
					Value:  int64(v),
					Reason: fmt.Sprintf("face %d references a vertex outside [0, %d)", i, nv),
				}
			}
			faces.Set(i, j, float64(v)+1)
		}
	}

	return &Surface{
		Vertices:  verts,
		Faces:     faces,
		CreatedBy: createdBy,
		Info:      info,
	}, nil
}

func decodeQuadSurface(br *binary.Reader, magic uint32) (*Surface, error) {
	nv, err := br.ReadUint24()
	if err != nil {
		return nil, fmt.Errorf("reading vertex count: %w", err)
	}
	nf, err := br.ReadUint24()
	if err != nil {
		return nil, fmt.Errorf("reading face count: %w", err)
	}

	var verts *mat.Dense
	if magic == QuadMagic {
		// Legacy coordinates are int16 hundredths of a millimeter.
		if nv > 0 {
			verts = mat.NewDense(int(nv), 3, nil)
		}
		for i := 0; i < int(nv); i++ {
			for j := 0; j < 3; j++ {
				v, err := br.ReadInt16()
				if err != nil {
					return nil, coordSizeErr(int64(nv), int64(i), err)
				}
				verts.Set(i, j, float64(v)/100)
			}
		}
	} else {
		verts, err = readCoordRows(br, int(nv))
		if err != nil {
			return nil, err
		}
	}

	var quads *mat.Dense
	if nf > 0 {
		quads = mat.NewDense(int(nf), 4, nil)
	}
	for i := 0; i < int(nf); i++ {
		for j := 0; j < 4; j++ {
			v, err := br.ReadUint24()
			if err != nil {
				return nil, faceSizeErr(int64(nf), int64(i), err)
			}
			if v >= nv {
				return nil, &FormatError{
					Field:  "face vertex index",
					Value:  int64(v),
					Reason: fmt.Sprintf("face %d references a vertex outside [0, %d)", i, nv),
				}
			}
			quads.Set(i, j, float64(v))
		}
	}

	var faces *mat.Dense
	if quads != nil {
		tris, err := QuadToTris(quads)
		if err != nil {
			return nil, err
		}
		rows, cols := tris.Dims()
		faces = mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				faces.Set(i, j, tris.At(i, j)+1)
			}
		}
	}

	return &Surface{Vertices: verts, Faces: faces}, nil
}

// readCoordRows reads n rows of three float32 coordinates.
func readCoordRows(br *binary.Reader, n int) (*mat.Dense, error) {
	if n == 0 {
		return nil, nil
	}
	m := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			v, err := br.ReadFloat32()
			if err != nil {
				return nil, coordSizeErr(int64(n), int64(i), err)
			}
			m.Set(i, j, float64(v))
		}
	}
	return m, nil
}

func coordSizeErr(declared, got int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &SizeMismatchError{Entity: "vertex rows", Declared: declared, Actual: got}
	}
	return fmt.Errorf("reading vertex coordinates: %w", err)
}

func faceSizeErr(declared, got int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &SizeMismatchError{Entity: "face rows", Declared: declared, Actual: got}
	}
	return fmt.Errorf("reading face indices: %w", err)
}

// QuadToTris splits an m×4 matrix of quadrangle faces into a 2m×3 matrix of
// triangle faces. Each quad (a, b, c, d) becomes the triangles (a, b, c) and
// (c, d, a). Index values pass through unchanged, so the transform works for
// 0-based and 1-based faces alike.
func QuadToTris(quads mat.Matrix) (*mat.Dense, error) {
	rows, cols := quads.Dims()
	if cols != 4 {
		return nil, &ValidationError{Reason: fmt.Sprintf("quad faces must have 4 columns, got %d", cols)}
	}
	tris := mat.NewDense(2*rows, 3, nil)
	for i := 0; i < rows; i++ {
		a, b, c, d := quads.At(i, 0), quads.At(i, 1), quads.At(i, 2), quads.At(i, 3)
		tris.Set(2*i, 0, a)
		tris.Set(2*i, 1, b)
		tris.Set(2*i, 2, c)
		tris.Set(2*i+1, 0, c)
		tris.Set(2*i+1, 1, d)
		tris.Set(2*i+1, 2, a)
	}
	return tris, nil
}

// TrisToQuad merges consecutive triangle pairs produced by QuadToTris back
// into quadrangles. The triangle count must be even.
func TrisToQuad(tris mat.Matrix) (*mat.Dense, error) {
	rows, cols := tris.Dims()
	if cols != 3 {
		return nil, &ValidationError{Reason: fmt.Sprintf("triangle faces must have 3 columns, got %d", cols)}
	}
	if rows%2 != 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("cannot pair %d triangles into quads", rows)}
	}
	quads := mat.NewDense(rows/2, 4, nil)
	for i := 0; i < rows/2; i++ {
		quads.Set(i, 0, tris.At(2*i, 0))
		quads.Set(i, 1, tris.At(2*i, 1))
		quads.Set(i, 2, tris.At(2*i, 2))
		quads.Set(i, 3, tris.At(2*i+1, 1))
	}
	return quads, nil
}
