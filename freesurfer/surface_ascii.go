package freesurfer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// The ASCII surface format is a plain-text sibling of the triangle format:
// an optional #! comment line, a "nvertices nfaces" line, one "x y z flag"
// line per vertex and one "a b c flag" line per face. The trailing flag
// column marks patch membership in derived files and is written as 0 here.

func readSurfaceASCII(path string) (*Surface, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s, err := DecodeSurfaceASCII(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DecodeSurfaceASCII decodes an ASCII surface mesh from r.
func DecodeSurfaceASCII(r io.Reader) (*Surface, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line, ok := nextLine(sc)
	if !ok {
		return nil, &FormatError{Field: "ascii surface", Value: 0, Reason: "empty stream"}
	}
	var s Surface
	if strings.HasPrefix(line, "#") {
		s.Info = line
		line, ok = nextLine(sc)
		if !ok {
			return nil, &FormatError{Field: "ascii surface", Value: 0, Reason: "missing count line"}
		}
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, &FormatError{Field: "ascii surface", Value: 0,
			Reason: fmt.Sprintf("count line %q must hold two integers", line)}
	}
	nv, err := strconv.Atoi(fields[0])
	if err != nil || nv < 0 {
		return nil, &FormatError{Field: "ascii surface", Value: 0,
			Reason: fmt.Sprintf("bad vertex count %q", fields[0])}
	}
	nf, err := strconv.Atoi(fields[1])
	if err != nil || nf < 0 {
		return nil, &FormatError{Field: "ascii surface", Value: 0,
			Reason: fmt.Sprintf("bad face count %q", fields[1])}
	}

	if nv > 0 {
		s.Vertices = mat.NewDense(nv, 3, nil)
	}
	for i := 0; i < nv; i++ {
		row, ok := nextLine(sc)
		if !ok {
			return nil, &SizeMismatchError{Entity: "vertex rows", Declared: int64(nv), Actual: int64(i)}
		}
		cols := strings.Fields(row)
		if len(cols) < 3 {
			return nil, &FormatError{Field: "ascii vertex row", Value: int64(i),
				Reason: fmt.Sprintf("%q has %d columns, need at least 3", row, len(cols))}
		}
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(cols[j], 64)
			if err != nil {
				return nil, &FormatError{Field: "ascii vertex row", Value: int64(i),
					Reason: fmt.Sprintf("bad coordinate %q", cols[j])}
			}
			s.Vertices.Set(i, j, v)
		}
	}

	if nf > 0 {
		s.Faces = mat.NewDense(nf, 3, nil)
	}
	for i := 0; i < nf; i++ {
		row, ok := nextLine(sc)
		if !ok {
			return nil, &SizeMismatchError{Entity: "face rows", Declared: int64(nf), Actual: int64(i)}
		}
		cols := strings.Fields(row)
		if len(cols) < 3 {
			return nil, &FormatError{Field: "ascii face row", Value: int64(i),
				Reason: fmt.Sprintf("%q has %d columns, need at least 3", row, len(cols))}
		}
		for j := 0; j < 3; j++ {
			v, err := strconv.Atoi(cols[j])
			if err != nil {
				return nil, &FormatError{Field: "ascii face row", Value: int64(i),
					Reason: fmt.Sprintf("bad vertex index %q", cols[j])}
			}
			if v < 0 || v >= nv {
				return nil, &FormatError{Field: "face vertex index", Value: int64(v),
					Reason: fmt.Sprintf("face %d references a vertex outside [0, %d)", i, nv)}
			}
			s.Faces.Set(i, j, float64(v)+1)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// EncodeSurfaceASCII encodes s to w as an ASCII surface. Like the binary
// encoder it handles triangle meshes only.
func EncodeSurfaceASCII(w io.Writer, s *Surface) error {
	if err := validateMesh(s); err != nil {
		return err
	}
	return encodeSurfaceASCII(w, s)
}

func encodeSurfaceASCII(w io.Writer, s *Surface) error {
	bw := bufio.NewWriter(w)
	comment := s.Info
	if comment == "" {
		comment = "#!ascii version of surface"
	}
	if _, err := fmt.Fprintln(bw, comment); err != nil {
		return err
	}
	nv := s.NumVertices()
	nf := s.NumFaces()
	if _, err := fmt.Fprintf(bw, "%d %d\n", nv, nf); err != nil {
		return err
	}
	for i := 0; i < nv; i++ {
		_, err := fmt.Fprintf(bw, "%f  %f  %f  0\n",
			s.Vertices.At(i, 0), s.Vertices.At(i, 1), s.Vertices.At(i, 2))
		if err != nil {
			return err
		}
	}
	for i := 0; i < nf; i++ {
		_, err := fmt.Fprintf(bw, "%d %d %d 0\n",
			int(s.Faces.At(i, 0))-1, int(s.Faces.At(i, 1))-1, int(s.Faces.At(i, 2))-1)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// nextLine returns the next non-empty line with surrounding space trimmed.
func nextLine(sc *bufio.Scanner) (string, bool) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			return line, true
		}
	}
	return "", false
}
