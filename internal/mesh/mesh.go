// Package mesh holds the indexed triangle mesh shared by every extraction
// stage, together with masking, cleanup and simplification routines.
package mesh

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/atlasmesh/pkg/math"
)

// Mesh errors.
var (
	ErrEmptyMesh     = errors.New("mesh has no faces")
	ErrDanglingIndex = errors.New("face references a missing vertex")
	ErrMaskSize      = errors.New("mask length does not match vertex count")
)

// DegenerateEpsilon is the doubled-area threshold below which a face is
// considered degenerate.
const DegenerateEpsilon = 1e-12

// Mesh is an indexed triangle mesh. Every face index is < len(Vertices).
type Mesh struct {
	Vertices []math.Vec3
	Faces    [][3]uint32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Size returns the box extent along each axis.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Validate checks that every face index refers to an existing vertex.
func (m *Mesh) Validate() error {
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx >= n {
				return fmt.Errorf("%w: face %d index %d, %d vertices", ErrDanglingIndex, i, idx, n)
			}
		}
	}
	return nil
}

// Bounds returns the bounding box of the vertices, or a zero box for an
// empty mesh.
func (m *Mesh) Bounds() Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b.Min = b.Min.Min(v)
		b.Max = b.Max.Max(v)
	}
	return b
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([]math.Vec3, len(m.Vertices)),
		Faces:    make([][3]uint32, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	return out
}

// MapVertices replaces every vertex v with fn(v).
func (m *Mesh) MapVertices(fn func(math.Vec3) math.Vec3) {
	for i, v := range m.Vertices {
		m.Vertices[i] = fn(v)
	}
}

// FlipWinding reverses the orientation of every face.
func (m *Mesh) FlipWinding() {
	for i, f := range m.Faces {
		m.Faces[i] = [3]uint32{f[0], f[2], f[1]}
	}
}

// FaceArea2 returns twice the area of face i.
func (m *Mesh) FaceArea2(i int) float64 {
	f := m.Faces[i]
	return math.TriangleArea2(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
}

// RemoveDegenerateFaces drops faces with repeated indices or near-zero area
// and returns how many were removed.
func (m *Mesh) RemoveDegenerateFaces() int {
	kept := m.Faces[:0]
	for i, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		if area := m.FaceArea2(i); area <= DegenerateEpsilon || gomath.IsNaN(area) {
			continue
		}
		kept = append(kept, f)
	}
	removed := len(m.Faces) - len(kept)
	m.Faces = kept
	return removed
}

// RemoveUnreferencedVertices drops vertices no face uses, remapping face
// indices to the compacted array. Returns how many vertices were removed.
func (m *Mesh) RemoveUnreferencedVertices() int {
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		used[f[0]], used[f[1]], used[f[2]] = true, true, true
	}

	remap := make([]uint32, len(m.Vertices))
	kept := make([]math.Vec3, 0, len(m.Vertices))
	for i, v := range m.Vertices {
		if used[i] {
			remap[i] = uint32(len(kept))
			kept = append(kept, v)
		}
	}
	for i, f := range m.Faces {
		m.Faces[i] = [3]uint32{remap[f[0]], remap[f[1]], remap[f[2]]}
	}

	removed := len(m.Vertices) - len(kept)
	m.Vertices = kept
	return removed
}

// Clean removes degenerate faces and then orphaned vertices.
func (m *Mesh) Clean() {
	m.RemoveDegenerateFaces()
	m.RemoveUnreferencedVertices()
}

// Normals returns area-weighted per-vertex unit normals.
func (m *Mesh) Normals() []math.Vec3 {
	normals := make([]math.Vec3, len(m.Vertices))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i, n := range normals {
		normals[i] = n.Normalize()
	}
	return normals
}

// FromTriangles builds an indexed mesh from a triangle soup, merging vertices
// that coincide within tolerance. Vertex order follows first appearance, so
// the result is deterministic for a given input order. Triangles that
// collapse during merging are dropped.
func FromTriangles(tris [][3]math.Vec3, tolerance float64) *Mesh {
	if tolerance <= 0 {
		tolerance = 1e-9
	}
	type key [3]int64
	quantize := func(v math.Vec3) key {
		return key{
			int64(gomath.Round(v.X / tolerance)),
			int64(gomath.Round(v.Y / tolerance)),
			int64(gomath.Round(v.Z / tolerance)),
		}
	}

	index := make(map[key]uint32, len(tris))
	m := &Mesh{Faces: make([][3]uint32, 0, len(tris))}
	for _, t := range tris {
		var f [3]uint32
		for j, v := range t {
			k := quantize(v)
			idx, ok := index[k]
			if !ok {
				idx = uint32(len(m.Vertices))
				index[k] = idx
				m.Vertices = append(m.Vertices, v)
			}
			f[j] = idx
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		m.Faces = append(m.Faces, f)
	}
	return m
}

// SignedVolume returns the volume enclosed by the mesh, positive when faces
// wind counter-clockwise seen from outside. Only meaningful for closed
// surfaces.
func (m *Mesh) SignedVolume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}
