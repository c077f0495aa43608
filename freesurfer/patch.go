package freesurfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// patchVersion is the only binary patch encoding in circulation. The slot
// held the point count before the format grew a version tag, so versions
// are negative to be distinguishable from counts.
const patchVersion = -1

// PatchVertex is one surface vertex retained by a patch, carried with its
// flattened coordinates.
type PatchVertex struct {
	// Index is the 0-based vertex index into the source surface.
	Index int32
	// Border marks vertices on the patch boundary.
	Border bool
	X, Y, Z float32
}

// Patch is a subset of a surface, cut and usually flattened. The binary
// format stores only vertices; the ASCII variant keeps faces too, as an
// m×3 matrix of 1-based indices like Surface.Faces.
type Patch struct {
	// Comment round-trips the leading free-text line of ASCII patches.
	Comment  string
	Vertices []PatchVertex
	Faces    *mat.Dense
}

// ReadPatch reads a patch from path, as ASCII when path ends in .asc and
// binary otherwise.
func ReadPatch(path string) (*Patch, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var p *Patch
	if strings.HasSuffix(strings.ToLower(path), ".asc") {
		p, err = DecodePatchASCII(r)
	} else {
		p, err = DecodePatch(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DecodePatch decodes a binary patch stream. Each point stores its vertex
// index as a signed, 1-shifted integer whose sign marks border membership.
func DecodePatch(r io.Reader) (*Patch, error) {
	br := binary.NewReader(r)

	version, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading patch version: %w", err)
	}
	if version != patchVersion {
		return nil, &FormatError{Field: "patch version", Value: int64(version), Want: []int64{patchVersion}}
	}
	n, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading patch point count: %w", err)
	}
	if n < 0 {
		return nil, &FormatError{Field: "patch point count", Value: int64(n), Reason: "negative"}
	}

	p := &Patch{Vertices: make([]PatchVertex, n)}
	for i := 0; i < int(n); i++ {
		ind, err := br.ReadInt32()
		if err != nil {
			return nil, patchSizeErr(int64(n), int64(i), err)
		}
		pv, err := patchVertexFromInd(ind)
		if err != nil {
			return nil, err
		}
		for _, dst := range []*float32{&pv.X, &pv.Y, &pv.Z} {
			if *dst, err = br.ReadFloat32(); err != nil {
				return nil, patchSizeErr(int64(n), int64(i), err)
			}
		}
		p.Vertices[i] = pv
	}
	return p, nil
}

// WritePatch writes p to path, as ASCII when path ends in .asc and binary
// otherwise. The patch is validated before the file is created.
func WritePatch(path string, p *Patch) error {
	if err := validatePatch(p); err != nil {
		return err
	}
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".asc") {
		err = EncodePatchASCII(w, p)
	} else {
		err = EncodePatch(w, p)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodePatch encodes p as a binary patch. Faces are dropped; the binary
// format cannot carry them.
func EncodePatch(w io.Writer, p *Patch) error {
	if err := validatePatch(p); err != nil {
		return err
	}
	bw := binary.NewWriter(w)
	if err := bw.WriteInt32(patchVersion); err != nil {
		return err
	}
	if err := bw.WriteInt32(int32(len(p.Vertices))); err != nil {
		return err
	}
	for _, pv := range p.Vertices {
		if err := bw.WriteInt32(pv.ind()); err != nil {
			return err
		}
		for _, c := range [3]float32{pv.X, pv.Y, pv.Z} {
			if err := bw.WriteFloat32(c); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ind returns the on-disk form of the vertex index: 1-shifted so zero never
// appears, negated for border vertices.
func (pv PatchVertex) ind() int32 {
	if pv.Border {
		return -(pv.Index + 1)
	}
	return pv.Index + 1
}

func patchVertexFromInd(ind int32) (PatchVertex, error) {
	switch {
	case ind < 0:
		return PatchVertex{Index: -ind - 1, Border: true}, nil
	case ind > 0:
		return PatchVertex{Index: ind - 1}, nil
	default:
		return PatchVertex{}, &FormatError{Field: "patch point index", Value: 0,
			Reason: "zero is unrepresentable, the sign carries the border flag"}
	}
}

func patchSizeErr(declared, got int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &SizeMismatchError{Entity: "patch points", Declared: declared, Actual: got}
	}
	return fmt.Errorf("reading patch points: %w", err)
}

func validatePatch(p *Patch) error {
	if p == nil {
		return &ValidationError{Reason: "patch is nil"}
	}
	for i, pv := range p.Vertices {
		if pv.Index < 0 {
			return &ValidationError{Reason: fmt.Sprintf("patch point %d has negative vertex index %d", i, pv.Index)}
		}
	}
	if p.Faces == nil {
		return nil
	}
	rows, cols := p.Faces.Dims()
	if cols != 3 {
		return &ValidationError{Reason: fmt.Sprintf("patch face matrix must have 3 columns, got %d", cols)}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := p.Faces.At(i, j); v < 1 {
				return &ValidationError{Reason: fmt.Sprintf("patch face %d holds index %v, faces are 1-based", i, v)}
			}
		}
	}
	return nil
}

// DecodePatchASCII decodes the text form of a patch: a comment line, an
// "npts nfaces" line, one index line and one coordinate line per point,
// then one face-number line and one index triple line per face.
func DecodePatchASCII(r io.Reader) (*Patch, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line, ok := nextLine(sc)
	if !ok {
		return nil, &FormatError{Field: "ascii patch", Value: 0, Reason: "empty stream"}
	}
	var p Patch
	if strings.HasPrefix(line, "#") {
		p.Comment = line
		line, ok = nextLine(sc)
		if !ok {
			return nil, &FormatError{Field: "ascii patch", Value: 0, Reason: "missing count line"}
		}
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, &FormatError{Field: "ascii patch", Value: 0,
			Reason: fmt.Sprintf("count line %q must hold two integers", line)}
	}
	npts, err := strconv.Atoi(fields[0])
	if err != nil || npts < 0 {
		return nil, &FormatError{Field: "ascii patch", Value: 0,
			Reason: fmt.Sprintf("bad point count %q", fields[0])}
	}
	nf, err := strconv.Atoi(fields[1])
	if err != nil || nf < 0 {
		return nil, &FormatError{Field: "ascii patch", Value: 0,
			Reason: fmt.Sprintf("bad face count %q", fields[1])}
	}

	p.Vertices = make([]PatchVertex, npts)
	for i := 0; i < npts; i++ {
		indLine, ok := nextLine(sc)
		if !ok {
			return nil, &SizeMismatchError{Entity: "patch points", Declared: int64(npts), Actual: int64(i)}
		}
		ind, err := strconv.ParseInt(strings.Fields(indLine)[0], 10, 32)
		if err != nil {
			return nil, &FormatError{Field: "ascii patch point", Value: int64(i),
				Reason: fmt.Sprintf("bad index %q", indLine)}
		}
		pv, err := patchVertexFromInd(int32(ind))
		if err != nil {
			return nil, err
		}
		coordLine, ok := nextLine(sc)
		if !ok {
			return nil, &SizeMismatchError{Entity: "patch points", Declared: int64(npts), Actual: int64(i)}
		}
		cols := strings.Fields(coordLine)
		if len(cols) < 3 {
			return nil, &FormatError{Field: "ascii patch point", Value: int64(i),
				Reason: fmt.Sprintf("%q has %d coordinates, need 3", coordLine, len(cols))}
		}
		for j, dst := range []*float32{&pv.X, &pv.Y, &pv.Z} {
			v, err := strconv.ParseFloat(cols[j], 32)
			if err != nil {
				return nil, &FormatError{Field: "ascii patch point", Value: int64(i),
					Reason: fmt.Sprintf("bad coordinate %q", cols[j])}
			}
			*dst = float32(v)
		}
		p.Vertices[i] = pv
	}

	if nf > 0 {
		p.Faces = mat.NewDense(nf, 3, nil)
	}
	for i := 0; i < nf; i++ {
		if _, ok := nextLine(sc); !ok { // face number line, informational
			return nil, &SizeMismatchError{Entity: "patch faces", Declared: int64(nf), Actual: int64(i)}
		}
		row, ok := nextLine(sc)
		if !ok {
			return nil, &SizeMismatchError{Entity: "patch faces", Declared: int64(nf), Actual: int64(i)}
		}
		cols := strings.Fields(row)
		if len(cols) < 3 {
			return nil, &FormatError{Field: "ascii patch face", Value: int64(i),
				Reason: fmt.Sprintf("%q has %d columns, need 3", row, len(cols))}
		}
		for j := 0; j < 3; j++ {
			v, err := strconv.Atoi(cols[j])
			if err != nil || v < 0 {
				return nil, &FormatError{Field: "ascii patch face", Value: int64(i),
					Reason: fmt.Sprintf("bad vertex index %q", cols[j])}
			}
			p.Faces.Set(i, j, float64(v)+1)
		}
	}
	return &p, nil
}

// EncodePatchASCII encodes p in the text form, faces included.
func EncodePatchASCII(w io.Writer, p *Patch) error {
	if err := validatePatch(p); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	comment := p.Comment
	if comment == "" {
		comment = "#!ascii version of patch"
	}
	if _, err := fmt.Fprintln(bw, comment); err != nil {
		return err
	}
	nf := 0
	if p.Faces != nil {
		nf, _ = p.Faces.Dims()
	}
	if _, err := fmt.Fprintf(bw, "%d %d\n", len(p.Vertices), nf); err != nil {
		return err
	}
	for _, pv := range p.Vertices {
		if _, err := fmt.Fprintf(bw, "%d\n%f  %f  %f\n", pv.ind(), pv.X, pv.Y, pv.Z); err != nil {
			return err
		}
	}
	for i := 0; i < nf; i++ {
		_, err := fmt.Fprintf(bw, "%d\n%d %d %d\n", i,
			int(p.Faces.At(i, 0))-1, int(p.Faces.At(i, 1))-1, int(p.Faces.At(i, 2))-1)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}
