package freesurfer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// ReadColorTable reads a lookup table from an ASCII file of
// "index name r g b flag" rows, the format of the distributed
// FreeSurferColorLUT.txt. Blank lines and # comments are skipped. The
// table is checked for duplicate struct indices and colliding label codes.
func ReadColorTable(path string) (*ColorTable, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t, err := DecodeColorTable(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.FileName = path
	return t, nil
}

// DecodeColorTable decodes an ASCII lookup table stream.
func DecodeColorTable(r io.Reader) (*ColorTable, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	t := &ColorTable{}
	seen := make(map[int]struct{})
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, &FormatError{Field: "colortable row", Value: int64(lineNo),
				Reason: fmt.Sprintf("%q has %d columns, need 6", line, len(fields))}
		}

		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 {
			return nil, &FormatError{Field: "colortable row", Value: int64(lineNo),
				Reason: fmt.Sprintf("bad struct index %q", fields[0])}
		}
		if _, dup := seen[idx]; dup {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate colortable struct index %d", idx)}
		}
		seen[idx] = struct{}{}

		var rgba [4]uint8
		for i, f := range fields[2:6] {
			c, err := strconv.Atoi(f)
			if err != nil || c < 0 || c > 255 {
				return nil, &FormatError{Field: "colortable row", Value: int64(lineNo),
					Reason: fmt.Sprintf("bad color component %q", f)}
			}
			rgba[i] = uint8(c)
		}
		t.Entries = append(t.Entries, ColorTableEntry{
			Index: idx,
			Name:  fields[1],
			R:     rgba[0],
			G:     rgba[1],
			B:     rgba[2],
			Flag:  rgba[3],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if _, err := t.CodeMap(); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteColorTable writes t to path as an ASCII lookup table. The table is
// validated before the file is created.
func WriteColorTable(path string, t *ColorTable) error {
	if err := validateColorTable(t); err != nil {
		return err
	}
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	err = EncodeColorTable(w, t)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeColorTable encodes t as "index name r g b flag" rows.
func EncodeColorTable(w io.Writer, t *ColorTable) error {
	if err := validateColorTable(t); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for _, e := range t.Entries {
		_, err := fmt.Fprintf(bw, "%-4d  %-40s  %3d %3d %3d %3d\n",
			e.Index, e.Name, e.R, e.G, e.B, e.Flag)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

func validateColorTable(t *ColorTable) error {
	if t == nil {
		return &ValidationError{Reason: "colortable is nil"}
	}
	seen := make(map[int]struct{}, len(t.Entries))
	for _, e := range t.Entries {
		if e.Index < 0 {
			return &ValidationError{Reason: fmt.Sprintf("colortable struct index %d is negative", e.Index)}
		}
		if _, dup := seen[e.Index]; dup {
			return &ValidationError{Reason: fmt.Sprintf("duplicate colortable struct index %d", e.Index)}
		}
		seen[e.Index] = struct{}{}
		if strings.ContainsAny(e.Name, " \t\n") {
			return &ValidationError{Reason: fmt.Sprintf("colortable name %q holds whitespace", e.Name)}
		}
		if e.Name == "" {
			return &ValidationError{Reason: fmt.Sprintf("colortable struct %d has no name", e.Index)}
		}
	}
	_, err := t.CodeMap()
	return err
}
