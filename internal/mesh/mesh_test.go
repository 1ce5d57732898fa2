package mesh

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/atlasmesh/pkg/math"
)

// uvSphere builds a closed unit sphere with outward-facing winding.
func uvSphere(rings, segments int) *Mesh {
	m := &Mesh{Vertices: []math.Vec3{{Y: 1}}}
	for r := 0; r < rings; r++ {
		phi := gomath.Pi * float64(r+1) / float64(rings+1)
		for j := 0; j < segments; j++ {
			theta := 2 * gomath.Pi * float64(j) / float64(segments)
			m.Vertices = append(m.Vertices, math.Vec3{
				X: gomath.Sin(phi) * gomath.Cos(theta),
				Y: gomath.Cos(phi),
				Z: gomath.Sin(phi) * gomath.Sin(theta),
			})
		}
	}
	south := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, math.Vec3{Y: -1})

	v := func(r, j int) uint32 { return uint32(1 + r*segments + j%segments) }
	for j := 0; j < segments; j++ {
		m.Faces = append(m.Faces, [3]uint32{0, v(0, j+1), v(0, j)})
	}
	for r := 0; r < rings-1; r++ {
		for j := 0; j < segments; j++ {
			a, b, c, d := v(r, j), v(r, j+1), v(r+1, j), v(r+1, j+1)
			m.Faces = append(m.Faces, [3]uint32{a, b, c}, [3]uint32{b, d, c})
		}
	}
	for j := 0; j < segments; j++ {
		m.Faces = append(m.Faces, [3]uint32{south, v(rings-1, j), v(rings-1, j+1)})
	}
	return m
}

// grid builds an n x n quad grid in the XY plane, two triangles per cell.
func grid(n int) *Mesh {
	m := &Mesh{}
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Vertices = append(m.Vertices, math.Vec3{X: float64(x), Y: float64(y)})
		}
	}
	idx := func(x, y int) uint32 { return uint32(y*(n+1) + x) }
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			m.Faces = append(m.Faces,
				[3]uint32{idx(x, y), idx(x+1, y), idx(x+1, y+1)},
				[3]uint32{idx(x, y), idx(x+1, y+1), idx(x, y+1)})
		}
	}
	return m
}

func TestValidate(t *testing.T) {
	m := grid(2)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	m.Faces = append(m.Faces, [3]uint32{0, 1, uint32(len(m.Vertices))})
	if err := m.Validate(); !errors.Is(err, ErrDanglingIndex) {
		t.Errorf("Validate() error = %v, want ErrDanglingIndex", err)
	}
}

func TestBounds(t *testing.T) {
	m := uvSphere(8, 12)
	b := m.Bounds()
	if gomath.Abs(b.Max.Y-1) > 1e-12 || gomath.Abs(b.Min.Y+1) > 1e-12 {
		t.Errorf("Bounds() Y range = [%v, %v], want [-1, 1]", b.Min.Y, b.Max.Y)
	}
	for _, v := range m.Vertices {
		if v.X < b.Min.X || v.X > b.Max.X || v.Z < b.Min.Z || v.Z > b.Max.Z {
			t.Fatalf("vertex %v outside bounds %+v", v, b)
		}
	}

	if got := (&Mesh{}).Bounds(); got != (Bounds{}) {
		t.Errorf("empty Bounds() = %+v, want zero", got)
	}
}

func TestRemoveDegenerateFaces(t *testing.T) {
	m := &Mesh{
		Vertices: []math.Vec3{{}, {X: 1}, {Y: 1}, {X: 2}},
		Faces: [][3]uint32{
			{0, 1, 2}, // fine
			{0, 1, 1}, // repeated index
			{0, 1, 3}, // collinear
		},
	}
	if removed := m.RemoveDegenerateFaces(); removed != 2 {
		t.Errorf("RemoveDegenerateFaces() = %d, want 2", removed)
	}
	if removed := m.RemoveUnreferencedVertices(); removed != 1 {
		t.Errorf("RemoveUnreferencedVertices() = %d, want 1", removed)
	}
	if m.VertexCount() != 3 || m.FaceCount() != 1 {
		t.Errorf("got %d vertices / %d faces, want 3 / 1", m.VertexCount(), m.FaceCount())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFlipWinding(t *testing.T) {
	m := grid(1)
	before := m.Normals()[0]
	m.FlipWinding()
	after := m.Normals()[0]
	if before.Dot(after) >= 0 {
		t.Errorf("normal %v not reversed after flip (was %v)", after, before)
	}
}

func TestFromTriangles(t *testing.T) {
	tris := [][3]math.Vec3{
		{{}, {X: 1}, {Y: 1}},
		{{X: 1}, {X: 1, Y: 1}, {Y: 1 + 1e-12}},
		{{}, {}, {X: 1}}, // collapses
	}
	m := FromTriangles(tris, 1e-9)
	if m.VertexCount() != 4 {
		t.Errorf("VertexCount() = %d, want 4", m.VertexCount())
	}
	if m.FaceCount() != 2 {
		t.Errorf("FaceCount() = %d, want 2", m.FaceCount())
	}
	if m.Faces[1][2] != 2 {
		t.Errorf("near-duplicate vertex not merged: face %v", m.Faces[1])
	}
}

func TestSubmeshStrictInclusion(t *testing.T) {
	m := grid(4)
	mask := make([]bool, len(m.Vertices))
	// Select the left half including the shared middle column.
	for i, v := range m.Vertices {
		mask[i] = v.X <= 2
	}

	sub, err := Submesh(m.Vertices, m.Faces, mask)
	if err != nil {
		t.Fatalf("Submesh() error = %v", err)
	}
	if sub.FaceCount() != 16 {
		t.Errorf("FaceCount() = %d, want 16", sub.FaceCount())
	}
	if err := sub.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	for _, v := range sub.Vertices {
		if v.X > 2 {
			t.Fatalf("vertex %v outside mask", v)
		}
	}
}

func TestSubmeshEmpty(t *testing.T) {
	m := grid(3)
	mask := make([]bool, len(m.Vertices))
	// A single vertex can never complete a face.
	mask[5] = true
	if _, err := Submesh(m.Vertices, m.Faces, mask); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("Submesh() error = %v, want ErrEmptyMesh", err)
	}

	if _, err := Submesh(m.Vertices, m.Faces, mask[:3]); !errors.Is(err, ErrMaskSize) {
		t.Errorf("Submesh() error = %v, want ErrMaskSize", err)
	}
}

func TestSubmeshDoesNotModifySource(t *testing.T) {
	m := grid(2)
	orig := m.Clone()
	mask := make([]bool, len(m.Vertices))
	for i := range mask {
		mask[i] = i%2 == 0 || i < 4
	}
	_, _ = Submesh(m.Vertices, m.Faces, mask)

	for i := range orig.Faces {
		if m.Faces[i] != orig.Faces[i] {
			t.Fatalf("face %d modified", i)
		}
	}
	for i := range orig.Vertices {
		if m.Vertices[i] != orig.Vertices[i] {
			t.Fatalf("vertex %d modified", i)
		}
	}
}

func TestSignedVolume(t *testing.T) {
	m := uvSphere(16, 24)
	vol := m.SignedVolume()
	// Inscribed polyhedron, slightly below 4/3*pi.
	if vol < 3.8 || vol > 4.19 {
		t.Errorf("SignedVolume() = %v, want about 4.18", vol)
	}
	m.FlipWinding()
	if got := m.SignedVolume(); gomath.Abs(got+vol) > 1e-9 {
		t.Errorf("flipped SignedVolume() = %v, want %v", got, -vol)
	}
}
