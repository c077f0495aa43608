// Fsdump prints the structure of FreeSurfer data files: surfaces, curv
// overlays, MGH volumes, annotations, labels, weights, colortables, and
// patches.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/robert-malhotra/go-freesurfer/freesurfer"
)

var args struct {
	Path    string `arg:"positional,required" help:"FreeSurfer file to inspect"`
	Format  string `arg:"-f,--format" help:"force the format: surface|curv|volume|annot|label|weight|colortable|patch"`
	Config  string `arg:"-c,--config" help:"YAML configuration file"`
	NoColor bool   `arg:"--no-color" help:"disable colored output"`
}

var (
	headline = color.New(color.FgHiCyan, color.Bold).Sprint
	fieldCol = color.New(color.FgHiGreen).Sprint
)

func main() {
	arg.MustParse(&args)

	cfg, err := LoadConfig(args.Config)
	if err != nil {
		fail(err)
	}
	if args.NoColor || !cfg.Output.Color {
		color.NoColor = true
	}

	format := args.Format
	if format == "" {
		format = detectFormat(args.Path)
	}

	fmt.Printf("%s %s\n", headline("==="), headline(args.Path))
	if fi, err := os.Stat(args.Path); err == nil {
		printField("size", humanize.Bytes(uint64(fi.Size())))
	}
	printField("format", format)
	fmt.Println()

	if err := dump(format, args.Path, cfg); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "fsdump: %v\n", err)
	os.Exit(1)
}

func printField(name string, value interface{}) {
	fmt.Printf("  %s: %v\n", fieldCol(name), value)
}

// detectFormat guesses the codec family from the filename, the way the
// original tools name their outputs.
func detectFormat(path string) string {
	base := strings.ToLower(filepath.Base(path))
	trimmed := base
	for _, suf := range []string{".gz", ".mgz", ".mgh"} {
		trimmed = strings.TrimSuffix(trimmed, suf)
	}
	switch {
	case strings.HasSuffix(base, ".mgh"), strings.HasSuffix(base, ".mgz"),
		strings.HasSuffix(base, ".mgh.gz"):
		if isMorphName(trimmed) {
			return "curv"
		}
		return "volume"
	case strings.HasSuffix(base, ".annot"):
		return "annot"
	case strings.HasSuffix(base, ".label"):
		return "label"
	case strings.HasSuffix(base, ".w"):
		return "weight"
	case strings.Contains(base, ".patch"):
		return "patch"
	case strings.HasSuffix(base, ".txt"), strings.HasSuffix(base, ".ctab"),
		strings.Contains(base, "lut"):
		return "colortable"
	case isMorphName(strings.TrimSuffix(base, ".gz")):
		return "curv"
	default:
		return "surface"
	}
}

func isMorphName(base string) bool {
	for _, m := range []string{".curv", ".thickness", ".area", ".sulc", ".jacobian", ".volume"} {
		if strings.HasSuffix(base, m) {
			return true
		}
	}
	return false
}

func dump(format, path string, cfg *Config) error {
	switch format {
	case "surface":
		return dumpSurface(path, cfg)
	case "curv":
		values, err := freesurfer.ReadMorph(path)
		if err != nil {
			return err
		}
		dumpValues(values)
		return nil
	case "volume":
		return dumpVolume(path, cfg)
	case "annot":
		return dumpAnnot(path, cfg)
	case "label":
		return dumpLabel(path)
	case "weight":
		return dumpWeight(path)
	case "colortable":
		return dumpColorTable(path, cfg)
	case "patch":
		return dumpPatch(path, cfg)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// open honors the configured gzip suffix policy. Codecs read plain
// streams, so overriding the policy here is all a nonstandard naming
// scheme needs.
func open(path string, cfg *Config) (io.ReadCloser, error) {
	return cfg.Policy().Open(path)
}

func dumpSurface(path string, cfg *Config) error {
	var s *freesurfer.Surface
	r, err := open(path, cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	if strings.HasSuffix(strings.ToLower(path), ".asc") {
		s, err = freesurfer.DecodeSurfaceASCII(r)
	} else {
		s, err = freesurfer.DecodeSurface(r)
	}
	if err != nil {
		return err
	}

	fmt.Println(headline("Surface"))
	printField("vertices", humanize.Comma(int64(s.NumVertices())))
	printField("faces", humanize.Comma(int64(s.NumFaces())))
	if s.CreatedBy != "" {
		printField("created", s.CreatedBy)
	}
	if s.Info != "" {
		printField("info", s.Info)
	}
	if s.NumVertices() > 0 {
		var lo, hi [3]float64
		for j := 0; j < 3; j++ {
			col := matCol(s, j)
			lo[j] = floats.Min(col)
			hi[j] = floats.Max(col)
		}
		printField("bounds", fmt.Sprintf("[%.2f %.2f %.2f] .. [%.2f %.2f %.2f]",
			lo[0], lo[1], lo[2], hi[0], hi[1], hi[2]))
	}
	return nil
}

func matCol(s *freesurfer.Surface, j int) []float64 {
	n := s.NumVertices()
	col := make([]float64, n)
	for i := 0; i < n; i++ {
		col[i] = s.Vertices.At(i, j)
	}
	return col
}

func dumpValues(values []float64) {
	fmt.Println(headline("Morphometry"))
	printField("values", humanize.Comma(int64(len(values))))
	if len(values) == 0 {
		return
	}
	printField("min", fmt.Sprintf("%.4f", floats.Min(values)))
	printField("max", fmt.Sprintf("%.4f", floats.Max(values)))
	printField("mean", fmt.Sprintf("%.4f", stat.Mean(values, nil)))
}

func dumpVolume(path string, cfg *Config) error {
	r, err := open(path, cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	v, err := freesurfer.DecodeVolume(r)
	if err != nil {
		return err
	}

	fmt.Println(headline("Volume"))
	printField("dimensions", fmt.Sprintf("%d × %d × %d, %d frame(s)",
		v.Dims[0], v.Dims[1], v.Dims[2], v.Dims[3]))
	printField("sample type", v.Type)
	printField("voxels", humanize.Comma(int64(v.NumVoxels())))
	printField("dof", v.DoF)
	if v.Vox2RAS != nil {
		for i := 0; i < 4; i++ {
			printField(fmt.Sprintf("vox2ras[%d]", i), fmt.Sprintf("[%9.3f %9.3f %9.3f %9.3f]",
				v.Vox2RAS.At(i, 0), v.Vox2RAS.At(i, 1), v.Vox2RAS.At(i, 2), v.Vox2RAS.At(i, 3)))
		}
	} else {
		printField("vox2ras", "absent")
	}
	printField("tr/flip/te/ti", fmt.Sprintf("%.3f / %.3f / %.3f / %.3f",
		v.Params[0], v.Params[1], v.Params[2], v.Params[3]))
	if len(v.Data) > 0 {
		printField("range", fmt.Sprintf("%.4f .. %.4f", floats.Min(v.Data), floats.Max(v.Data)))
	}
	return nil
}

func dumpAnnot(path string, cfg *Config) error {
	r, err := open(path, cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	a, err := freesurfer.DecodeAnnot(r)
	if err != nil {
		return err
	}

	fmt.Println(headline("Annotation"))
	printField("vertices", humanize.Comma(int64(len(a.Vertices))))
	unlabeled := 0
	for _, c := range a.Codes {
		if c == freesurfer.UnknownCode {
			unlabeled++
		}
	}
	printField("unlabeled", humanize.Comma(int64(unlabeled)))
	if a.Table == nil {
		printField("colortable", "absent")
		return nil
	}
	fmt.Println()
	fmt.Println(headline("Colortable"))
	printField("source", a.Table.FileName)
	printField("structs", humanize.Comma(int64(len(a.Table.Entries))))
	printTableRows(a.Table, cfg.Output.MaxRows)
	return nil
}

func printTableRows(t *freesurfer.ColorTable, maxRows int) {
	for i, e := range t.Entries {
		if i == maxRows {
			fmt.Printf("  ... %s more\n", humanize.Comma(int64(len(t.Entries)-maxRows)))
			break
		}
		fmt.Printf("  %4d  %-32s  #%02X%02X%02X flag %d\n", e.Index, e.Name, e.R, e.G, e.B, e.Flag)
	}
}

func dumpLabel(path string) error {
	l, err := freesurfer.ReadLabel(path)
	if err != nil {
		return err
	}
	fmt.Println(headline("Label"))
	if l.Comment != "" {
		printField("comment", l.Comment)
	}
	printField("vertices", humanize.Comma(int64(len(l.Vertices))))
	if len(l.Values) > 0 {
		printField("value range", fmt.Sprintf("%.4f .. %.4f", floats.Min(l.Values), floats.Max(l.Values)))
	}
	return nil
}

func dumpWeight(path string) error {
	w, err := freesurfer.ReadWeight(path)
	if err != nil {
		return err
	}
	fmt.Println(headline("Weight"))
	printField("entries", humanize.Comma(int64(len(w.Vertices))))
	if len(w.Values) > 0 {
		printField("value range", fmt.Sprintf("%.4f .. %.4f", floats.Min(w.Values), floats.Max(w.Values)))
	}
	return nil
}

func dumpColorTable(path string, cfg *Config) error {
	t, err := freesurfer.ReadColorTable(path)
	if err != nil {
		return err
	}
	fmt.Println(headline("Colortable"))
	printField("structs", humanize.Comma(int64(len(t.Entries))))
	printTableRows(t, cfg.Output.MaxRows)
	return nil
}

func dumpPatch(path string, cfg *Config) error {
	r, err := open(path, cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	var p *freesurfer.Patch
	if strings.HasSuffix(strings.ToLower(path), ".asc") {
		p, err = freesurfer.DecodePatchASCII(r)
	} else {
		p, err = freesurfer.DecodePatch(r)
	}
	if err != nil {
		return err
	}

	fmt.Println(headline("Patch"))
	printField("points", humanize.Comma(int64(len(p.Vertices))))
	border := 0
	for _, pv := range p.Vertices {
		if pv.Border {
			border++
		}
	}
	printField("border points", humanize.Comma(int64(border)))
	if p.Faces != nil {
		rows, _ := p.Faces.Dims()
		printField("faces", humanize.Comma(int64(rows)))
	}
	return nil
}
