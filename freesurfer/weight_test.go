package freesurfer

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"lukechampine.com/frand"
)

func testWeight(n int) *Weight {
	w := &Weight{
		Vertices: make([]int32, n),
		Values:   make([]float64, n),
	}
	perm := frand.Perm(1 << 16)
	for i := 0; i < n; i++ {
		w.Vertices[i] = int32(perm[i])
		w.Values[i] = float64(float32(frand.Intn(4096)) / 16)
	}
	return w
}

func TestWeightRoundTrip(t *testing.T) {
	want := testWeight(129)

	var buf bytes.Buffer
	if err := EncodeWeight(&buf, want); err != nil {
		t.Fatalf("EncodeWeight: %v", err)
	}
	got, err := DecodeWeight(&buf)
	if err != nil {
		t.Fatalf("DecodeWeight: %v", err)
	}
	if len(got.Vertices) != len(want.Vertices) {
		t.Fatalf("got %d entries, want %d", len(got.Vertices), len(want.Vertices))
	}
	for i := range want.Vertices {
		if got.Vertices[i] != want.Vertices[i] || got.Values[i] != want.Values[i] {
			t.Fatalf("entry %d = (%d, %v), want (%d, %v)",
				i, got.Vertices[i], got.Values[i], want.Vertices[i], want.Values[i])
		}
	}
}

func TestWeightLayout(t *testing.T) {
	w := &Weight{Vertices: []int32{260}, Values: []float64{1.5}}

	var buf bytes.Buffer
	if err := EncodeWeight(&buf, w); err != nil {
		t.Fatalf("EncodeWeight: %v", err)
	}
	want := []byte{
		0, 0, 0, 1, // count
		0x00, 0x01, 0x04, // vertex 260 in three bytes
		0x3F, 0xC0, 0x00, 0x00, // 1.5
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded stream:\ngot  % X\nwant % X", buf.Bytes(), want)
	}
}

func TestWeightTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeWeight(&buf, testWeight(8)); err != nil {
		t.Fatalf("EncodeWeight: %v", err)
	}
	raw := buf.Bytes()

	_, err := DecodeWeight(bytes.NewReader(raw[:4+3*7+2]))
	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("got %v, want a SizeMismatchError", err)
	}
	if sm.Declared != 8 || sm.Actual != 3 {
		t.Errorf("SizeMismatchError = %d/%d, want declared 8, actual 3", sm.Declared, sm.Actual)
	}
}

func TestWeightVertexRange(t *testing.T) {
	w := &Weight{Vertices: []int32{1 << 24}, Values: []float64{0}}
	err := EncodeWeight(&bytes.Buffer{}, w)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want a ValidationError", err)
	}
}

func TestWeightDuplicateVertex(t *testing.T) {
	w := &Weight{Vertices: []int32{9, 9}, Values: []float64{1, 1}}
	err := EncodeWeight(&bytes.Buffer{}, w)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want a ValidationError", err)
	}
}

func TestWeightFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.w")
	want := testWeight(40)
	if err := WriteWeight(path, want); err != nil {
		t.Fatalf("WriteWeight: %v", err)
	}
	got, err := ReadWeight(path)
	if err != nil {
		t.Fatalf("ReadWeight: %v", err)
	}
	if len(got.Vertices) != 40 {
		t.Fatalf("got %d entries, want 40", len(got.Vertices))
	}
}
