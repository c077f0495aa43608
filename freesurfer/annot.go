package freesurfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// UnknownCode is the packed label code of an unlabeled vertex. On disk it
// is four 0xFF bytes; no colortable entry may pack to it.
const UnknownCode int32 = -1

// ctabVersion is the colortable encoding emitted by WriteAnnot. Version 1
// files carry no explicit version tag, later versions store the negated
// version number where version 1 stored its entry count.
const ctabVersion = 2

// ColorTableEntry is one named anatomical structure and its RGBA identity.
type ColorTableEntry struct {
	Index int // struct index, unique within the table
	Name  string
	R     uint8
	G     uint8
	B     uint8
	// Flag is the fourth color component. Annotation files use it as a
	// transparency byte and it participates in code packing.
	Flag uint8
}

// Code returns the packed label code identifying this entry in per-vertex
// annotation data: R fills the low byte, then G, B, and Flag upward.
func (e ColorTableEntry) Code() int32 {
	return int32(uint32(e.R) | uint32(e.G)<<8 | uint32(e.B)<<16 | uint32(e.Flag)<<24)
}

// ColorTable maps anatomical structure indices to names and colors.
// Entries keep file order; struct indices may have gaps.
type ColorTable struct {
	// FileName records the LUT path embedded in annotation files.
	FileName string
	Entries  []ColorTableEntry
}

// CodeMap builds the reverse lookup from packed label code to the position
// of the matching entry in Entries. Two entries packing to the same code
// make per-vertex labels ambiguous, which is reported as a collision.
func (t *ColorTable) CodeMap() (map[int32]int, error) {
	m := make(map[int32]int, len(t.Entries))
	for i, e := range t.Entries {
		code := e.Code()
		if code == UnknownCode {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("colortable struct %d packs to the unlabeled sentinel %d", e.Index, UnknownCode),
			}
		}
		if prev, dup := m[code]; dup {
			return nil, &ColorCollisionError{Code: code, First: t.Entries[prev].Index, Second: e.Index}
		}
		m[code] = i
	}
	return m, nil
}

// Annotation assigns a packed label code to each annotated vertex,
// optionally together with the colortable that names the codes.
type Annotation struct {
	Vertices []int32
	Codes    []int32
	Table    *ColorTable
}

// StructIndices resolves each vertex code to the struct index of its
// colortable entry. Vertices whose code is UnknownCode or absent from the
// table resolve to -1. The annotation must carry a table.
func (a *Annotation) StructIndices() ([]int, error) {
	if a.Table == nil {
		return nil, &ValidationError{Reason: "annotation carries no colortable"}
	}
	codes, err := a.Table.CodeMap()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(a.Codes))
	for i, c := range a.Codes {
		if pos, ok := codes[c]; ok {
			out[i] = a.Table.Entries[pos].Index
		} else {
			out[i] = -1
		}
	}
	return out, nil
}

// ReadAnnot reads a cortical parcellation from path.
func ReadAnnot(path string) (*Annotation, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	a, err := DecodeAnnot(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// DecodeAnnot decodes an annotation stream: interleaved (vertex, code)
// pairs followed by an optional embedded colortable. The colortable's code
// map is built eagerly so ambiguous tables are rejected at decode time.
func DecodeAnnot(r io.Reader) (*Annotation, error) {
	br := binary.NewReader(r)

	n, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading annotation count: %w", err)
	}
	if n < 0 {
		return nil, &FormatError{Field: "annotation count", Value: int64(n), Reason: "negative"}
	}

	a := &Annotation{
		Vertices: make([]int32, n),
		Codes:    make([]int32, n),
	}
	for i := 0; i < int(n); i++ {
		if a.Vertices[i], err = br.ReadInt32(); err == nil {
			a.Codes[i], err = br.ReadInt32()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &SizeMismatchError{Entity: "annotation pairs", Declared: int64(n), Actual: int64(i)}
			}
			return nil, fmt.Errorf("reading annotation pairs: %w", err)
		}
	}

	tag, err := br.ReadInt32()
	if errors.Is(err, io.EOF) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading colortable tag: %w", err)
	}
	if tag == 0 {
		return a, nil
	}

	if a.Table, err = decodeColorTable(br); err != nil {
		return nil, err
	}
	if _, err := a.Table.CodeMap(); err != nil {
		return nil, err
	}
	return a, nil
}

// decodeColorTable decodes an embedded colortable. A positive leading
// integer is a version 1 entry count; a negative one is a negated version
// number introducing the extended encoding.
func decodeColorTable(br *binary.Reader) (*ColorTable, error) {
	lead, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading colortable header: %w", err)
	}
	switch {
	case lead > 0:
		return decodeColorTableV1(br, int(lead))
	case -lead == ctabVersion:
		return decodeColorTableV2(br)
	default:
		return nil, &FormatError{Field: "colortable version", Value: int64(-lead), Want: []int64{ctabVersion}}
	}
}

func decodeColorTableV1(br *binary.Reader, numEntries int) (*ColorTable, error) {
	t := &ColorTable{}
	var err error
	if t.FileName, err = readCountedString(br); err != nil {
		return nil, fmt.Errorf("reading colortable file name: %w", err)
	}
	t.Entries = make([]ColorTableEntry, numEntries)
	for i := range t.Entries {
		e, err := readColorTableEntry(br, i)
		if err != nil {
			return nil, err
		}
		t.Entries[i] = e
	}
	return t, nil
}

func decodeColorTableV2(br *binary.Reader) (*ColorTable, error) {
	// maxEntries bounds the struct index space; entries above it were
	// never assigned and the count is not otherwise meaningful here.
	if _, err := br.ReadInt32(); err != nil {
		return nil, fmt.Errorf("reading colortable capacity: %w", err)
	}
	t := &ColorTable{}
	var err error
	if t.FileName, err = readCountedString(br); err != nil {
		return nil, fmt.Errorf("reading colortable file name: %w", err)
	}
	numToRead, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading colortable entry count: %w", err)
	}
	if numToRead < 0 {
		return nil, &FormatError{Field: "colortable entry count", Value: int64(numToRead), Reason: "negative"}
	}

	seen := make(map[int]struct{}, numToRead)
	t.Entries = make([]ColorTableEntry, 0, numToRead)
	for i := 0; i < int(numToRead); i++ {
		idx, err := br.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("reading colortable struct index: %w", err)
		}
		if idx < 0 {
			return nil, &FormatError{Field: "colortable struct index", Value: int64(idx), Reason: "negative"}
		}
		if _, dup := seen[int(idx)]; dup {
			return nil, &FormatError{Field: "colortable struct index", Value: int64(idx), Reason: "duplicate"}
		}
		seen[int(idx)] = struct{}{}

		e, err := readColorTableEntry(br, int(idx))
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

func readColorTableEntry(br *binary.Reader, index int) (ColorTableEntry, error) {
	e := ColorTableEntry{Index: index}
	name, err := readCountedString(br)
	if err != nil {
		return e, fmt.Errorf("reading colortable entry %d name: %w", index, err)
	}
	e.Name = name
	var rgba [4]int32
	for i := range rgba {
		if rgba[i], err = br.ReadInt32(); err != nil {
			return e, fmt.Errorf("reading colortable entry %d color: %w", index, err)
		}
		if rgba[i] < 0 || rgba[i] > 255 {
			return e, &FormatError{Field: "colortable color component", Value: int64(rgba[i]),
				Reason: fmt.Sprintf("entry %d component outside [0, 255]", index)}
		}
	}
	e.R, e.G, e.B, e.Flag = uint8(rgba[0]), uint8(rgba[1]), uint8(rgba[2]), uint8(rgba[3])
	return e, nil
}

// readCountedString reads a length-prefixed string. The stored length
// counts a trailing NUL, which is stripped.
func readCountedString(br *binary.Reader) (string, error) {
	n, err := br.ReadInt32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", &FormatError{Field: "string length", Value: int64(n), Reason: "negative"}
	}
	b, err := br.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b), nil
}
