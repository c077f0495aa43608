package stream

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Policy decides which paths are gzip-filtered.
type Policy struct {
	// GzipSuffixes lists path suffixes, compared case-insensitively, that
	// select a gzip filter.
	GzipSuffixes []string
}

// DefaultPolicy returns the stock suffix policy: ".gz" for gzip-wrapped flat
// formats and ".mgz" for compressed MGH volumes.
func DefaultPolicy() Policy {
	return Policy{GzipSuffixes: []string{".gz", ".mgz"}}
}

// Gzipped reports whether path selects a gzip filter under the policy.
func (p Policy) Gzipped(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range p.GzipSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// reader pairs a gzip filter with the file it wraps so both release on Close.
type reader struct {
	io.Reader
	closers []io.Closer
}

func (r *reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// writer pairs a gzip filter with the file it wraps. Close flushes and
// releases the filter before the file so compressed trailers land on disk.
type writer struct {
	io.Writer
	closers []io.Closer
}

func (w *writer) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading under the default policy.
func Open(path string) (io.ReadCloser, error) {
	return DefaultPolicy().Open(path)
}

// Create opens path for writing under the default policy, truncating any
// existing file.
func Create(path string) (io.WriteCloser, error) {
	return DefaultPolicy().Create(path)
}

// Open opens path for reading, interposing a gzip filter when the policy
// selects one.
func (p Policy) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !p.Gzipped(path) {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &reader{Reader: zr, closers: []io.Closer{zr, f}}, nil
}

// Create opens path for writing, interposing a gzip filter when the policy
// selects one.
func (p Policy) Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !p.Gzipped(path) {
		return f, nil
	}
	zw := gzip.NewWriter(f)
	return &writer{Writer: zw, closers: []io.Closer{zw, f}}, nil
}
