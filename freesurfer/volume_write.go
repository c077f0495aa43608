package freesurfer

import (
	"fmt"
	"io"
	"math"

	"github.com/robert-malhotra/go-freesurfer/internal/binary"
	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// WriteVolume writes v to path in the MGH format, gzip-compressed when path
// ends in .mgz or .gz. The volume is validated before the file is created.
func WriteVolume(path string, v *Volume) error {
	if err := validateVolume(v); err != nil {
		return err
	}
	w, err := stream.Create(path)
	if err != nil {
		return err
	}
	err = EncodeVolume(w, v)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EncodeVolume encodes v to w as an uncompressed MGH stream.
func EncodeVolume(w io.Writer, v *Volume) error {
	if err := validateVolume(v); err != nil {
		return err
	}

	bw := binary.NewWriter(w)
	if err := bw.WriteInt32(mghVersion); err != nil {
		return err
	}
	for _, d := range v.Dims {
		if err := bw.WriteInt32(int32(d)); err != nil {
			return err
		}
	}
	if err := bw.WriteInt32(int32(v.Type)); err != nil {
		return err
	}
	if err := bw.WriteInt32(v.DoF); err != nil {
		return err
	}

	rasGood := int16(0)
	if v.Vox2RAS != nil {
		rasGood = 1
	}
	if err := bw.WriteInt16(rasGood); err != nil {
		return err
	}
	if v.Vox2RAS != nil {
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				if err := bw.WriteFloat32(float32(v.Vox2RAS.At(row, col))); err != nil {
					return err
				}
			}
		}
	}
	if err := bw.WriteZeros(mghDataOffset - int(bw.Offset())); err != nil {
		return err
	}

	for _, s := range v.Data {
		if err := writeSample(bw, v.Type, s); err != nil {
			return err
		}
	}

	for _, p := range v.Params {
		if err := bw.WriteFloat32(p); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func validateVolume(v *Volume) error {
	if v == nil {
		return &ValidationError{Reason: "volume is nil"}
	}
	for _, d := range v.Dims {
		if d < 0 {
			return &ValidationError{Reason: fmt.Sprintf("volume dimension %d is negative", d)}
		}
	}
	if !v.Type.valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown sample type %d", int32(v.Type))}
	}
	if n := v.NumVoxels(); len(v.Data) != n {
		return &ValidationError{Reason: fmt.Sprintf("volume holds %d samples, dimensions demand %d", len(v.Data), n)}
	}
	if v.Vox2RAS != nil {
		if r, c := v.Vox2RAS.Dims(); r != 4 || c != 4 {
			return &ValidationError{Reason: fmt.Sprintf("vox2ras must be 4×4, got %d×%d", r, c)}
		}
	}
	return nil
}

// writeSample narrows a staged float64 sample to the on-disk type. Integer
// types round to nearest and saturate at the type bounds, matching the
// historical writers.
func writeSample(bw *binary.Writer, t DataType, s float64) error {
	switch t {
	case TypeUChar:
		return bw.WriteUint8(uint8(clampRound(s, 0, math.MaxUint8)))
	case TypeInt:
		return bw.WriteInt32(int32(clampRound(s, math.MinInt32, math.MaxInt32)))
	case TypeFloat:
		return bw.WriteFloat32(float32(s))
	case TypeShort:
		return bw.WriteInt16(int16(clampRound(s, math.MinInt16, math.MaxInt16)))
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown sample type %d", int32(t))}
	}
}

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
