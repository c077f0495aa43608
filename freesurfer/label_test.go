package freesurfer

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestLabelRoundTrip(t *testing.T) {
	want := &Label{
		Comment:  "#!ascii label, from subject bert",
		Vertices: []int32{12, 7, 90210},
		Values:   []float64{0.5, -1.25, 0},
	}

	var buf bytes.Buffer
	if err := EncodeLabel(&buf, want); err != nil {
		t.Fatalf("EncodeLabel: %v", err)
	}
	got, err := DecodeLabel(&buf)
	if err != nil {
		t.Fatalf("DecodeLabel: %v", err)
	}

	if got.Comment != want.Comment {
		t.Errorf("Comment = %q, want %q", got.Comment, want.Comment)
	}
	for i := range want.Vertices {
		if got.Vertices[i] != want.Vertices[i] || got.Values[i] != want.Values[i] {
			t.Errorf("row %d = (%d, %v), want (%d, %v)",
				i, got.Vertices[i], got.Values[i], want.Vertices[i], want.Values[i])
		}
	}
}

// Rows from the statistical tools carry coordinate columns between the
// vertex index and the value; the value is the last column.
func TestLabelDecodeWideRows(t *testing.T) {
	text := `#!ascii label  , from subject bert vox2ras=TkReg
2
42  -13.0  25.5  9.0  1.5
77  -12.8  25.1  9.4  2.5
`
	got, err := DecodeLabel(strings.NewReader(text))
	if err != nil {
		t.Fatalf("DecodeLabel: %v", err)
	}
	if got.Vertices[0] != 42 || got.Values[0] != 1.5 {
		t.Errorf("row 0 = (%d, %v), want (42, 1.5)", got.Vertices[0], got.Values[0])
	}
	if got.Vertices[1] != 77 || got.Values[1] != 2.5 {
		t.Errorf("row 1 = (%d, %v), want (77, 2.5)", got.Vertices[1], got.Values[1])
	}
}

func TestLabelDecodeBareRows(t *testing.T) {
	text := "# comment\n2\n3\n9\n"
	got, err := DecodeLabel(strings.NewReader(text))
	if err != nil {
		t.Fatalf("DecodeLabel: %v", err)
	}
	if got.Values[0] != 0 || got.Values[1] != 0 {
		t.Errorf("values = %v, want zeros for value-less rows", got.Values)
	}
}

func TestLabelTruncated(t *testing.T) {
	text := "# comment\n3\n1 0.5\n2 0.5\n"
	_, err := DecodeLabel(strings.NewReader(text))
	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("got %v, want a SizeMismatchError", err)
	}
	if sm.Declared != 3 || sm.Actual != 2 {
		t.Errorf("SizeMismatchError = %d/%d, want declared 3, actual 2", sm.Declared, sm.Actual)
	}
}

func TestLabelDuplicateVertex(t *testing.T) {
	l := &Label{Vertices: []int32{5, 5}, Values: []float64{1, 2}}
	err := EncodeLabel(&bytes.Buffer{}, l)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want a ValidationError", err)
	}
}

func TestLabelFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lh.cortex.label")
	want := &Label{Vertices: []int32{3, 1, 4}, Values: []float64{0, 0.25, 0.5}}
	if err := WriteLabel(path, want); err != nil {
		t.Fatalf("WriteLabel: %v", err)
	}
	got, err := ReadLabel(path)
	if err != nil {
		t.Fatalf("ReadLabel: %v", err)
	}
	if len(got.Vertices) != 3 {
		t.Fatalf("got %d rows, want 3", len(got.Vertices))
	}
	if got.Comment == "" {
		t.Errorf("default comment line missing")
	}
}
