package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/atlasmesh/pkg/encoding"
	"github.com/Faultbox/atlasmesh/pkg/math"
)

// NIfTI-1 errors.
var (
	ErrInvalidNIfTIHeader      = errors.New("invalid NIfTI-1 header")
	ErrUnsupportedNIfTIType    = errors.New("unsupported NIfTI datatype")
	ErrUnsupportedNIfTILayout  = errors.New("unsupported NIfTI layout")
	ErrTruncatedNIfTIVoxelData = errors.New("truncated NIfTI voxel data")
)

const niftiHeaderSize = 348

// NIfTI datatype codes.
const (
	NIfTIUint8   int16 = 2
	NIfTIInt16   int16 = 4
	NIfTIInt32   int16 = 8
	NIfTIFloat32 int16 = 16
	NIfTIFloat64 int16 = 64
	NIfTIInt8    int16 = 256
	NIfTIUint16  int16 = 512
	NIfTIUint32  int16 = 768
)

// niftiHeader mirrors the 348-byte on-disk NIfTI-1 header.
type niftiHeader struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// NIfTI is a parsed single-file NIfTI-1 volume. Only the first 3D frame is
// kept; voxels are stored with x varying fastest.
type NIfTI struct {
	Dims        [3]int
	Spacing     math.Vec3
	Datatype    int16
	Description string
	// Affine maps voxel indices (i, j, k) to physical millimetres.
	Affine math.Mat4
	Voxels []float32
}

// Index returns the linear voxel index of (i, j, k).
func (n *NIfTI) Index(i, j, k int) int {
	return i + n.Dims[0]*(j+n.Dims[1]*k)
}

// At returns the voxel value at (i, j, k), or 0 outside the volume.
func (n *NIfTI) At(i, j, k int) float32 {
	if i < 0 || j < 0 || k < 0 || i >= n.Dims[0] || j >= n.Dims[1] || k >= n.Dims[2] {
		return 0
	}
	return n.Voxels[n.Index(i, j, k)]
}

// Coords returns the (i, j, k) indices of a linear voxel index.
func (n *NIfTI) Coords(idx int) (i, j, k int) {
	i = idx % n.Dims[0]
	idx /= n.Dims[0]
	j = idx % n.Dims[1]
	k = idx / n.Dims[1]
	return i, j, k
}

// ParseNIfTI parses an uncompressed single-file NIfTI-1 volume.
func ParseNIfTI(data []byte) (*NIfTI, error) {
	if len(data) < niftiHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidNIfTIHeader, len(data))
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case binary.LittleEndian.Uint32(data) == niftiHeaderSize:
	case binary.BigEndian.Uint32(data) == niftiHeaderSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: sizeof_hdr is not %d", ErrInvalidNIfTIHeader, niftiHeaderSize)
	}

	var hdr niftiHeader
	if err := binary.Read(bytes.NewReader(data[:niftiHeaderSize]), order, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNIfTIHeader, err)
	}
	if magic := string(hdr.Magic[:3]); magic != "n+1" {
		return nil, fmt.Errorf("%w: magic %q (only single-file .nii is supported)", ErrUnsupportedNIfTILayout, magic)
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 7 {
		return nil, fmt.Errorf("%w: %d dimensions", ErrUnsupportedNIfTILayout, ndim)
	}
	dims := [3]int{int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])}
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dim[%d]=%d", ErrUnsupportedNIfTILayout, i+1, d)
		}
	}

	size, err := niftiTypeSize(hdr.Datatype)
	if err != nil {
		return nil, err
	}

	offset := int(hdr.VoxOffset)
	if offset < niftiHeaderSize+4 {
		offset = niftiHeaderSize + 4
	}
	count := dims[0] * dims[1] * dims[2]
	if len(data) < offset+count*size {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedNIfTIVoxelData, count*size, offset, len(data)-offset)
	}

	vol := &NIfTI{
		Dims:        dims,
		Spacing:     math.Vec3{X: float64(hdr.Pixdim[1]), Y: float64(hdr.Pixdim[2]), Z: float64(hdr.Pixdim[3])},
		Datatype:    hdr.Datatype,
		Description: encoding.FixedStringToUTF8(hdr.Descrip[:]),
		Affine:      niftiAffine(&hdr),
		Voxels:      make([]float32, count),
	}

	raw := data[offset : offset+count*size]
	for i := range vol.Voxels {
		vol.Voxels[i] = niftiValue(raw[i*size:(i+1)*size], hdr.Datatype, order)
	}

	slope, inter := hdr.SclSlope, hdr.SclInter
	if slope != 0 && !gomath.IsNaN(float64(slope)) && (slope != 1 || inter != 0) {
		for i, v := range vol.Voxels {
			vol.Voxels[i] = v*slope + inter
		}
	}

	return vol, nil
}

// ParseNIfTIFile parses a .nii or .nii.gz file from disk.
func ParseNIfTIFile(path string) (*NIfTI, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading NIfTI file: %w", err)
	}
	return ParseNIfTI(data)
}

// niftiAffine resolves the voxel-to-world transform: sform first, then the
// qform quaternion, then plain voxel spacing.
func niftiAffine(hdr *niftiHeader) math.Mat4 {
	spacing := math.Vec3{X: float64(hdr.Pixdim[1]), Y: float64(hdr.Pixdim[2]), Z: float64(hdr.Pixdim[3])}

	if hdr.SformCode > 0 {
		return math.FromRows(rowToFloat64(hdr.SrowX), rowToFloat64(hdr.SrowY), rowToFloat64(hdr.SrowZ))
	}
	if hdr.QformCode > 0 {
		qfac := float64(hdr.Pixdim[0])
		if qfac == 0 {
			qfac = 1
		}
		return math.FromQuaternion(
			float64(hdr.QuaternB), float64(hdr.QuaternC), float64(hdr.QuaternD),
			spacing, qfac,
			math.Vec3{X: float64(hdr.QoffsetX), Y: float64(hdr.QoffsetY), Z: float64(hdr.QoffsetZ)},
		)
	}
	return math.Scale(spacing.X, spacing.Y, spacing.Z)
}

func rowToFloat64(r [4]float32) [4]float64 {
	return [4]float64{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
}

func niftiTypeSize(datatype int16) (int, error) {
	switch datatype {
	case NIfTIUint8, NIfTIInt8:
		return 1, nil
	case NIfTIInt16, NIfTIUint16:
		return 2, nil
	case NIfTIInt32, NIfTIUint32, NIfTIFloat32:
		return 4, nil
	case NIfTIFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedNIfTIType, datatype)
	}
}

func niftiValue(b []byte, datatype int16, order binary.ByteOrder) float32 {
	switch datatype {
	case NIfTIUint8:
		return float32(b[0])
	case NIfTIInt8:
		return float32(int8(b[0]))
	case NIfTIInt16:
		return float32(int16(order.Uint16(b)))
	case NIfTIUint16:
		return float32(order.Uint16(b))
	case NIfTIInt32:
		return float32(int32(order.Uint32(b)))
	case NIfTIUint32:
		return float32(order.Uint32(b))
	case NIfTIFloat32:
		return gomath.Float32frombits(order.Uint32(b))
	case NIfTIFloat64:
		return float32(gomath.Float64frombits(order.Uint64(b)))
	}
	return 0
}

// IsNIfTI reports whether data starts with a NIfTI-1 header.
func IsNIfTI(data []byte) bool {
	if len(data) < niftiHeaderSize {
		return false
	}
	return (binary.LittleEndian.Uint32(data) == niftiHeaderSize || binary.BigEndian.Uint32(data) == niftiHeaderSize) &&
		string(data[344:347]) == "n+1"
}
