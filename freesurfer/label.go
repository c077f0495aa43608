package freesurfer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// Label is a named subset of surface vertices with one scalar value per
// member, stored as plain text: a comment line, a count line, then one
// "vertex value" row per member.
type Label struct {
	// Comment round-trips the leading free-text line.
	Comment  string
	Vertices []int32
	Values   []float64
}

// ReadLabel reads a label from path.
func ReadLabel(path string) (*Label, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	l, err := DecodeLabel(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// DecodeLabel decodes a label stream.
func DecodeLabel(r io.Reader) (*Label, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var l Label
	line, ok := nextLine(sc)
	if !ok {
		return nil, &FormatError{Field: "label", Value: 0, Reason: "empty stream"}
	}
	if strings.HasPrefix(line, "#") {
		l.Comment = line
		line, ok = nextLine(sc)
		if !ok {
			return nil, &FormatError{Field: "label", Value: 0, Reason: "missing count line"}
		}
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 0 {
		return nil, &FormatError{Field: "label", Value: 0, Reason: fmt.Sprintf("bad vertex count %q", line)}
	}

	l.Vertices = make([]int32, 0, n)
	l.Values = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		row, ok := nextLine(sc)
		if !ok {
			return nil, &SizeMismatchError{Entity: "label rows", Declared: int64(n), Actual: int64(i)}
		}
		fields := strings.Fields(row)
		v, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil || v < 0 {
			return nil, &FormatError{Field: "label row", Value: int64(i),
				Reason: fmt.Sprintf("bad vertex index %q", fields[0])}
		}
		val := 0.0
		if len(fields) > 1 {
			// Rows written by the statistical tools carry coordinates
			// between the index and the value; the value is last.
			if val, err = strconv.ParseFloat(fields[len(fields)-1], 64); err != nil {
				return nil, &FormatError{Field: "label row", Value: int64(i),
					Reason: fmt.Sprintf("bad value %q", fields[len(fields)-1])}
			}
		}
		l.Vertices = append(l.Vertices, int32(v))
		l.Values = append(l.Values, val)
	}
	return &l, nil
}

// WriteLabel writes l to path. The label is validated before the file is
// created.
func WriteLabel(path string, l *Label) error {
	if err := validateLabel(l); err != nil {
		return err
	}
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	err = EncodeLabel(w, l)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeLabel encodes l to w.
func EncodeLabel(w io.Writer, l *Label) error {
	if err := validateLabel(l); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	comment := l.Comment
	if comment == "" {
		comment = "#!ascii label"
	}
	if _, err := fmt.Fprintln(bw, comment); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "%d\n", len(l.Vertices)); err != nil {
		return err
	}
	for i, v := range l.Vertices {
		if _, err := fmt.Fprintf(bw, "%d %.10f\n", v, l.Values[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func validateLabel(l *Label) error {
	if l == nil {
		return &ValidationError{Reason: "label is nil"}
	}
	if len(l.Vertices) != len(l.Values) {
		return &ValidationError{
			Reason: fmt.Sprintf("label holds %d vertices but %d values", len(l.Vertices), len(l.Values)),
		}
	}
	seen := make(map[int32]struct{}, len(l.Vertices))
	for _, v := range l.Vertices {
		if v < 0 {
			return &ValidationError{Reason: fmt.Sprintf("label vertex %d is negative", v)}
		}
		if _, dup := seen[v]; dup {
			return &ValidationError{Reason: fmt.Sprintf("label lists vertex %d twice", v)}
		}
		seen[v] = struct{}{}
	}
	return nil
}
