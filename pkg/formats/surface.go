package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// FreeSurfer surface errors.
var (
	ErrInvalidSurfaceMagic = errors.New("invalid surface magic: expected FreeSurfer triangle file")
	ErrTruncatedSurface    = errors.New("truncated surface data")
)

// triangleMagic identifies the FreeSurfer triangle surface format.
var triangleMagic = []byte{0xFF, 0xFF, 0xFE}

// Surface is a parsed FreeSurfer triangle surface (lh.pial, lh.white, ...).
type Surface struct {
	Comment  string
	Vertices [][3]float32
	Faces    [][3]int32
}

// ParseSurface parses a FreeSurfer triangle surface from raw bytes.
// All values are big-endian.
func ParseSurface(data []byte) (*Surface, error) {
	if len(data) < 3 || !bytes.Equal(data[:3], triangleMagic) {
		return nil, ErrInvalidSurfaceMagic
	}

	// The creator comment is terminated by two newlines.
	end := bytes.Index(data[3:], []byte("\n\n"))
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated comment", ErrTruncatedSurface)
	}
	surf := &Surface{Comment: string(data[3 : 3+end])}

	r := bytes.NewReader(data[3+end+2:])

	var vertexCount, faceCount int32
	if err := binary.Read(r, binary.BigEndian, &vertexCount); err != nil {
		return nil, fmt.Errorf("%w: reading vertex count", ErrTruncatedSurface)
	}
	if err := binary.Read(r, binary.BigEndian, &faceCount); err != nil {
		return nil, fmt.Errorf("%w: reading face count", ErrTruncatedSurface)
	}
	if vertexCount < 0 || faceCount < 0 {
		return nil, fmt.Errorf("invalid surface counts: %d vertices, %d faces", vertexCount, faceCount)
	}
	if int64(r.Len()) < int64(vertexCount)*12+int64(faceCount)*12 {
		return nil, fmt.Errorf("%w: expected %d vertices and %d faces", ErrTruncatedSurface, vertexCount, faceCount)
	}

	surf.Vertices = make([][3]float32, vertexCount)
	if err := binary.Read(r, binary.BigEndian, surf.Vertices); err != nil {
		return nil, fmt.Errorf("%w: reading vertices", ErrTruncatedSurface)
	}
	surf.Faces = make([][3]int32, faceCount)
	if err := binary.Read(r, binary.BigEndian, surf.Faces); err != nil {
		return nil, fmt.Errorf("%w: reading faces", ErrTruncatedSurface)
	}

	for i, f := range surf.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= vertexCount {
				return nil, fmt.Errorf("face %d references vertex %d of %d", i, idx, vertexCount)
			}
		}
	}

	return surf, nil
}

// ParseSurfaceFile parses a FreeSurfer surface from disk.
func ParseSurfaceFile(path string) (*Surface, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading surface file: %w", err)
	}
	return ParseSurface(data)
}

// IsSurface reports whether data starts with the FreeSurfer triangle magic.
func IsSurface(data []byte) bool {
	return len(data) >= 3 && bytes.Equal(data[:3], triangleMagic)
}
