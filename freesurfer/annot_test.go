package freesurfer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func testAnnotation() *Annotation {
	table := &ColorTable{
		FileName: "/opt/lut/aparc.annot.ctab",
		Entries: []ColorTableEntry{
			{Index: 0, Name: "unknown", R: 25, G: 5, B: 25},
			{Index: 1, Name: "bankssts", R: 25, G: 100, B: 40},
			{Index: 4, Name: "corpuscallosum", R: 120, G: 70, B: 50},
		},
	}
	return &Annotation{
		Vertices: []int32{0, 1, 2, 3},
		Codes: []int32{
			table.Entries[1].Code(),
			table.Entries[0].Code(),
			UnknownCode,
			table.Entries[2].Code(),
		},
		Table: table,
	}
}

// The packed code interleaves the color bytes little end first: red in the
// low byte, then green, blue, and the flag.
func TestColorTableEntryCode(t *testing.T) {
	tests := []struct {
		name  string
		entry ColorTableEntry
		want  int32
	}{
		{"bankssts", ColorTableEntry{R: 25, G: 100, B: 40}, 2647065},
		{"unknown", ColorTableEntry{R: 25, G: 5, B: 25}, 1639705},
		{"red only", ColorTableEntry{R: 255}, 255},
		{"flag byte", ColorTableEntry{Flag: 1}, 16777216},
		{"all components", ColorTableEntry{R: 1, G: 2, B: 3, Flag: 4}, 1 | 2<<8 | 3<<16 | 4<<24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Code(); got != tt.want {
				t.Errorf("Code() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAnnotRoundTrip(t *testing.T) {
	want := testAnnotation()

	var buf bytes.Buffer
	if err := EncodeAnnot(&buf, want); err != nil {
		t.Fatalf("EncodeAnnot: %v", err)
	}
	got, err := DecodeAnnot(&buf)
	if err != nil {
		t.Fatalf("DecodeAnnot: %v", err)
	}

	if len(got.Vertices) != len(want.Vertices) {
		t.Fatalf("got %d pairs, want %d", len(got.Vertices), len(want.Vertices))
	}
	for i := range want.Vertices {
		if got.Vertices[i] != want.Vertices[i] || got.Codes[i] != want.Codes[i] {
			t.Errorf("pair %d = (%d, %d), want (%d, %d)",
				i, got.Vertices[i], got.Codes[i], want.Vertices[i], want.Codes[i])
		}
	}
	if got.Table == nil {
		t.Fatal("colortable lost across round trip")
	}
	if got.Table.FileName != want.Table.FileName {
		t.Errorf("FileName = %q, want %q", got.Table.FileName, want.Table.FileName)
	}
	if len(got.Table.Entries) != len(want.Table.Entries) {
		t.Fatalf("table entries:\n%s", spew.Sdump(got.Table.Entries))
	}
	for i, e := range want.Table.Entries {
		if got.Table.Entries[i] != e {
			t.Errorf("entry %d:\ngot  %s\nwant %s", i,
				spew.Sdump(got.Table.Entries[i]), spew.Sdump(e))
		}
	}
}

// Struct indices with gaps (here 0, 1, 4) must survive the extended
// encoding unchanged.
func TestAnnotSparseStructIndices(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeAnnot(&buf, testAnnotation()); err != nil {
		t.Fatalf("EncodeAnnot: %v", err)
	}
	got, err := DecodeAnnot(&buf)
	if err != nil {
		t.Fatalf("DecodeAnnot: %v", err)
	}
	wantIdx := []int{0, 1, 4}
	for i, e := range got.Table.Entries {
		if e.Index != wantIdx[i] {
			t.Errorf("entry %d Index = %d, want %d", i, e.Index, wantIdx[i])
		}
	}
}

func TestAnnotNoTable(t *testing.T) {
	want := &Annotation{Vertices: []int32{5, 9}, Codes: []int32{UnknownCode, UnknownCode}}

	var buf bytes.Buffer
	if err := EncodeAnnot(&buf, want); err != nil {
		t.Fatalf("EncodeAnnot: %v", err)
	}
	got, err := DecodeAnnot(&buf)
	if err != nil {
		t.Fatalf("DecodeAnnot: %v", err)
	}
	if got.Table != nil {
		t.Errorf("Table = %v, want nil", got.Table)
	}
	if got.Codes[0] != UnknownCode {
		t.Errorf("Codes[0] = %d, want the unlabeled sentinel %d", got.Codes[0], UnknownCode)
	}
}

// Annotation data may also end right after the pairs, with no colortable
// tag at all.
func TestAnnotEOFAfterPairs(t *testing.T) {
	var buf bytes.Buffer
	be := binary.BigEndian
	w32 := func(v int32) { _ = binary.Write(&buf, be, v) }
	w32(1)
	w32(7)
	w32(0)

	got, err := DecodeAnnot(&buf)
	if err != nil {
		t.Fatalf("DecodeAnnot: %v", err)
	}
	if got.Table != nil {
		t.Errorf("Table = %v, want nil", got.Table)
	}
	if got.Vertices[0] != 7 || got.Codes[0] != 0 {
		t.Errorf("pair = (%d, %d), want (7, 0)", got.Vertices[0], got.Codes[0])
	}
}

// buildAnnotV1 hand-encodes the original sequential colortable layout.
func buildAnnotV1(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	be := binary.BigEndian
	w32 := func(v int32) { _ = binary.Write(&buf, be, v) }
	wstr := func(s string) {
		w32(int32(len(s) + 1))
		buf.WriteString(s)
		buf.WriteByte(0)
	}

	w32(2) // pairs
	w32(0)
	w32(1639705)
	w32(1)
	w32(2647065)

	w32(1) // colortable tag
	w32(2) // positive: version 1 entry count
	wstr("aparc.ctab")
	wstr("unknown")
	w32(25)
	w32(5)
	w32(25)
	w32(0)
	wstr("bankssts")
	w32(25)
	w32(100)
	w32(40)
	w32(0)
	return buf.Bytes()
}

func TestAnnotV1Decode(t *testing.T) {
	got, err := DecodeAnnot(bytes.NewReader(buildAnnotV1(t)))
	if err != nil {
		t.Fatalf("DecodeAnnot: %v", err)
	}
	if got.Table == nil {
		t.Fatal("no colortable decoded")
	}
	if got.Table.FileName != "aparc.ctab" {
		t.Errorf("FileName = %q, want %q", got.Table.FileName, "aparc.ctab")
	}
	want := []ColorTableEntry{
		{Index: 0, Name: "unknown", R: 25, G: 5, B: 25},
		{Index: 1, Name: "bankssts", R: 25, G: 100, B: 40},
	}
	for i, e := range want {
		if got.Table.Entries[i] != e {
			t.Errorf("entry %d = %+v, want %+v", i, got.Table.Entries[i], e)
		}
	}
	if got.Codes[1] != got.Table.Entries[1].Code() {
		t.Errorf("vertex 1 code %d does not match entry code %d",
			got.Codes[1], got.Table.Entries[1].Code())
	}
}

func TestAnnotDuplicateStructIndex(t *testing.T) {
	a := testAnnotation()
	a.Table.Entries[2].Index = 1 // clashes with bankssts

	var buf bytes.Buffer
	if err := EncodeAnnot(&buf, testAnnotation()); err != nil {
		t.Fatalf("EncodeAnnot: %v", err)
	}
	raw := buf.Bytes()

	// Rewriting the third entry's struct index on disk exercises the
	// decoder-side check; the index sits right after the second entry's
	// color block.
	err := EncodeAnnot(&bytes.Buffer{}, a)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("encode with duplicate index: got %v, want a ValidationError", err)
	}

	idxOff := findStructIndexOffset(raw, 4)
	if idxOff < 0 {
		t.Fatal("struct index 4 not found in encoded stream")
	}
	binary.BigEndian.PutUint32(raw[idxOff:], 1)
	_, err = DecodeAnnot(bytes.NewReader(raw))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("decode with duplicate index: got %v, want a FormatError", err)
	}
	if fe.Value != 1 {
		t.Errorf("FormatError.Value = %d, want 1", fe.Value)
	}
}

// findStructIndexOffset locates the byte offset of the extended-encoding
// entry whose struct index is want.
func findStructIndexOffset(raw []byte, want int32) int {
	for off := 0; off+4 <= len(raw); off++ {
		if int32(binary.BigEndian.Uint32(raw[off:])) == want {
			// The index is followed by a length-prefixed name whose
			// length must be plausible.
			n := int32(binary.BigEndian.Uint32(raw[off+4:]))
			if n > 0 && n < 64 && off+8+int(n) <= len(raw) && raw[off+8+int(n)-1] == 0 {
				return off
			}
		}
	}
	return -1
}

func TestAnnotColorCollision(t *testing.T) {
	a := testAnnotation()
	a.Table.Entries[2].R = 25 // same color as bankssts
	a.Table.Entries[2].G = 100
	a.Table.Entries[2].B = 40
	a.Table.Entries[2].Flag = 0

	err := EncodeAnnot(&bytes.Buffer{}, a)
	var cc *ColorCollisionError
	if !errors.As(err, &cc) {
		t.Fatalf("got %v, want a ColorCollisionError", err)
	}
	if cc.Code != 2647065 {
		t.Errorf("ColorCollisionError.Code = %d, want 2647065", cc.Code)
	}
	if cc.First != 1 || cc.Second != 4 {
		t.Errorf("collision between structs %d and %d, want 1 and 4", cc.First, cc.Second)
	}
}

func TestAnnotStructIndices(t *testing.T) {
	a := testAnnotation()
	got, err := a.StructIndices()
	if err != nil {
		t.Fatalf("StructIndices: %v", err)
	}
	want := []int{1, 0, -1, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vertex %d resolves to struct %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAnnotTruncatedPairs(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeAnnot(&buf, testAnnotation()); err != nil {
		t.Fatalf("EncodeAnnot: %v", err)
	}
	raw := buf.Bytes()

	_, err := DecodeAnnot(bytes.NewReader(raw[:4+2*8+4]))
	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("got %v, want a SizeMismatchError", err)
	}
	if sm.Declared != 4 || sm.Actual != 2 {
		t.Errorf("SizeMismatchError = %d/%d, want declared 4, actual 2", sm.Declared, sm.Actual)
	}
}

func TestAnnotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lh.aparc.annot")
	want := testAnnotation()
	if err := WriteAnnot(path, want); err != nil {
		t.Fatalf("WriteAnnot: %v", err)
	}
	got, err := ReadAnnot(path)
	if err != nil {
		t.Fatalf("ReadAnnot: %v", err)
	}
	if len(got.Table.Entries) != 3 {
		t.Fatalf("table came back with %d entries, want 3", len(got.Table.Entries))
	}
}

func TestAnnotVertexCodeLengthMismatch(t *testing.T) {
	a := &Annotation{Vertices: []int32{1, 2}, Codes: []int32{0}}
	err := EncodeAnnot(&bytes.Buffer{}, a)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want a ValidationError", err)
	}
}
