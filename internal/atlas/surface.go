package atlas

import (
	"errors"
	"fmt"

	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/pkg/formats"
	"github.com/Faultbox/atlasmesh/pkg/math"
)

// ErrUnknownSurface is returned for files that are neither FreeSurfer
// triangle surfaces nor GIFTI.
var ErrUnknownSurface = errors.New("unrecognised surface format")

// LoadSurface reads a reference surface from a FreeSurfer triangle file or a
// GIFTI file with pointset and triangle arrays. Errors wrap ErrIOFailure.
func LoadSurface(path string) (*mesh.Mesh, error) {
	data, err := formats.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var m *mesh.Mesh
	switch {
	case formats.IsSurface(data):
		m, err = decodeFreeSurfer(data)
	case formats.IsGIFTI(data):
		m, err = decodeGIFTISurface(data)
	default:
		err = ErrUnknownSurface
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIOFailure, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIOFailure, path, err)
	}
	return m, nil
}

func decodeFreeSurfer(data []byte) (*mesh.Mesh, error) {
	s, err := formats.ParseSurface(data)
	if err != nil {
		return nil, err
	}

	m := &mesh.Mesh{
		Vertices: make([]math.Vec3, len(s.Vertices)),
		Faces:    make([][3]uint32, len(s.Faces)),
	}
	for i, v := range s.Vertices {
		m.Vertices[i] = math.Vec3{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
	}
	for i, f := range s.Faces {
		m.Faces[i] = [3]uint32{uint32(f[0]), uint32(f[1]), uint32(f[2])}
	}
	return m, nil
}

func decodeGIFTISurface(data []byte) (*mesh.Mesh, error) {
	g, err := formats.ParseGIFTI(data)
	if err != nil {
		return nil, err
	}
	points, err := g.Array(formats.IntentPointSet)
	if err != nil {
		return nil, err
	}
	tris, err := g.Array(formats.IntentTriangle)
	if err != nil {
		return nil, err
	}
	if points.Cols() != 3 || tris.Cols() != 3 {
		return nil, fmt.Errorf("%w: pointset %v, triangles %v", formats.ErrGIFTIShapeMismatch, points.Dims, tris.Dims)
	}

	m := &mesh.Mesh{
		Vertices: make([]math.Vec3, points.Rows()),
		Faces:    make([][3]uint32, tris.Rows()),
	}
	for i := range m.Vertices {
		p := points.Values[i*3 : i*3+3]
		m.Vertices[i] = math.Vec3{X: p[0], Y: p[1], Z: p[2]}
	}
	for i := range m.Faces {
		f := tris.Values[i*3 : i*3+3]
		for j, v := range f {
			if v < 0 {
				return nil, fmt.Errorf("%w: face %d index %v", mesh.ErrDanglingIndex, i, v)
			}
			m.Faces[i][j] = uint32(v)
		}
	}
	return m, nil
}
