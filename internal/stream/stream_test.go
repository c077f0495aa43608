package stream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestGzipped(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		path string
		want bool
	}{
		{"lh.thickness", false},
		{"lh.thickness.gz", true},
		{"lh.thickness.GZ", true}, // case-insensitive
		{"brain.mgz", true},
		{"brain.MGZ", true},
		{"brain.mgh", false},
		{"gz", false}, // bare name, not a suffix match on ".gz"
		{"lh.white.asc", false},
	}
	for _, c := range cases {
		if got := p.Gzipped(c.path); got != c.want {
			t.Errorf("Gzipped(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestGzippedCustomPolicy(t *testing.T) {
	p := Policy{GzipSuffixes: []string{".curvz"}}

	if !p.Gzipped("lh.curvz") {
		t.Error("custom suffix not honored")
	}
	if p.Gzipped("brain.mgz") {
		t.Error("default suffix honored under custom policy")
	}
}

func TestPlainRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "plain.dat")
	payload := []byte{0xFF, 0xFF, 0xFE, 0x01, 0x02}

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Bytes on disk are the payload itself, no filter.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(raw, payload) {
		t.Errorf("on-disk bytes = %v, want %v", raw, payload)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back %v, want %v", got, payload)
	}
}

func TestGzipRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "vals.gz")
	payload := []byte("per-vertex payload bytes")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// On-disk bytes must carry the gzip signature, not the payload.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(raw) < 2 || raw[0] != 0x1F || raw[1] != 0x8B {
		t.Fatalf("expected gzip signature, got % x", raw[:min(len(raw), 4)])
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back %q, want %q", got, payload)
	}
}

// A .mgz written by this package must be readable by a plain gzip reader,
// and vice versa: the filter is stock gzip, nothing bespoke.
func TestGzipInterop(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "vol.mgz")
	payload := []byte{1, 0, 0, 0, 0, 0, 1, 0}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("gzip Write failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip Close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file Close failed: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back %v, want %v", got, payload)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.mgz"))
	if err == nil {
		t.Fatal("expected error opening missing file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
