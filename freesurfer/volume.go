package freesurfer

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// DataType identifies the on-disk sample type of an MGH volume.
type DataType int32

// MGH sample types. The numeric values are the type tags stored in the
// file header.
const (
	TypeUChar DataType = 0
	TypeInt   DataType = 1
	TypeFloat DataType = 3
	TypeShort DataType = 4
)

func (t DataType) String() string {
	switch t {
	case TypeUChar:
		return "uchar"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeShort:
		return "short"
	default:
		return fmt.Sprintf("DataType(%d)", int32(t))
	}
}

// valid reports whether t is one of the four defined sample types.
func (t DataType) valid() bool {
	switch t {
	case TypeUChar, TypeInt, TypeFloat, TypeShort:
		return true
	}
	return false
}

const (
	mghVersion = 1
	// mghDataOffset is the fixed byte offset of the first sample. The header
	// proper ends at byte 30 (94 with the vox2ras matrix present) and is
	// zero-padded up to here.
	mghDataOffset = 284
)

// Volume is an MGH volumetric scan of up to four dimensions, the fourth
// being frames.
//
// Data holds the samples as float64 regardless of the on-disk type; every
// defined sample type is exactly representable, so round trips are
// bit-faithful. Samples are stored with the first dimension varying
// fastest, matching the file layout. Vox2RAS is the 4×4 voxel-to-RAS
// transform, or nil when the file carries none.
type Volume struct {
	Dims    [4]int
	Type    DataType
	DoF     int32
	Vox2RAS *mat.Dense
	// Params holds the acquisition footer: repetition time, flip angle,
	// echo time, inversion time. Zero-valued when the file ends early.
	Params [4]float32
	Data   []float64
}

// NumVoxels returns the product of the four dimensions.
func (v *Volume) NumVoxels() int {
	n := 1
	for _, d := range v.Dims {
		n *= d
	}
	return n
}

// At returns the sample at voxel (i, j, k) of frame f. It panics when the
// coordinate is out of range, mirroring gonum's matrix accessors.
func (v *Volume) At(i, j, k, f int) float64 {
	for axis, x := range [4]int{i, j, k, f} {
		if x < 0 || x >= v.Dims[axis] {
			panic(fmt.Sprintf("freesurfer: voxel index %d out of range [0, %d) on axis %d", x, v.Dims[axis], axis))
		}
	}
	return v.Data[i+v.Dims[0]*(j+v.Dims[1]*(k+v.Dims[2]*f))]
}

// ReadVolume reads an MGH volume from path. Both .mgz and .mgh.gz are
// decompressed transparently.
func ReadVolume(path string) (*Volume, error) {
	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	v, err := DecodeVolume(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// DecodeVolume decodes an MGH volume from r. The stream must already be
// decompressed; use ReadVolume for .mgz paths.
func DecodeVolume(r io.Reader) (*Volume, error) {
	br := binary.NewReader(r)

	version, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != mghVersion {
		return nil, &FormatError{Field: "volume version", Value: int64(version), Want: []int64{mghVersion}}
	}

	var vol Volume
	for i := range vol.Dims {
		d, err := br.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("reading dimensions: %w", err)
		}
		if d < 0 {
			return nil, &FormatError{Field: "volume dimension", Value: int64(d), Reason: "negative"}
		}
		vol.Dims[i] = int(d)
	}

	typ, err := br.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading sample type: %w", err)
	}
	vol.Type = DataType(typ)
	if !vol.Type.valid() {
		return nil, &FormatError{
			Field: "sample type",
			Value: int64(typ),
			Want:  []int64{int64(TypeUChar), int64(TypeInt), int64(TypeFloat), int64(TypeShort)},
		}
	}

	if vol.DoF, err = br.ReadInt32(); err != nil {
		return nil, fmt.Errorf("reading dof: %w", err)
	}

	rasGood, err := br.ReadInt16()
	if err != nil {
		return nil, fmt.Errorf("reading ras flag: %w", err)
	}
	if rasGood > 0 {
		vol.Vox2RAS = mat.NewDense(4, 4, nil)
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				v, err := br.ReadFloat32()
				if err != nil {
					return nil, fmt.Errorf("reading vox2ras matrix: %w", err)
				}
				vol.Vox2RAS.Set(row, col, float64(v))
			}
		}
	}
	if err := br.Discard(mghDataOffset - int(br.Offset())); err != nil {
		return nil, fmt.Errorf("skipping header padding: %w", err)
	}

	n := vol.NumVoxels()
	vol.Data = make([]float64, n)
	for i := 0; i < n; i++ {
		s, err := readSample(br, vol.Type)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &SizeMismatchError{Entity: "voxel samples", Declared: int64(n), Actual: int64(i)}
			}
			return nil, fmt.Errorf("reading voxel samples: %w", err)
		}
		vol.Data[i] = s
	}

	// The acquisition footer is optional; files written before it existed
	// simply end here.
	for i := range vol.Params {
		p, err := br.ReadFloat32()
		if err != nil {
			if i == 0 && errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading acquisition parameters: %w", err)
		}
		vol.Params[i] = p
	}
	return &vol, nil
}

func readSample(br *binary.Reader, t DataType) (float64, error) {
	switch t {
	case TypeUChar:
		v, err := br.ReadUint8()
		return float64(v), err
	case TypeInt:
		v, err := br.ReadInt32()
		return float64(v), err
	case TypeFloat:
		v, err := br.ReadFloat32()
		return float64(v), err
	case TypeShort:
		v, err := br.ReadInt16()
		return float64(v), err
	default:
		return 0, &FormatError{Field: "sample type", Value: int64(t), Reason: "no decoder"}
	}
}
