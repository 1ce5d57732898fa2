// Package volume extracts boundary surfaces from labelled voxel atlases.
package volume

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/unixpickle/model3d/model3d"
	"go.uber.org/zap"

	"github.com/Faultbox/atlasmesh/internal/atlas"
	"github.com/Faultbox/atlasmesh/internal/coords"
	"github.com/Faultbox/atlasmesh/internal/logger"
	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/pkg/math"
)

// ErrTooFewVoxels is returned when a structure occupies fewer voxels than
// the extractor's minimum.
var ErrTooFewVoxels = errors.New("too few voxels")

// weldTolerance merges iso-surface vertices in voxel index units.
const weldTolerance = 1e-6

// Extractor turns a set of atlas labels into a triangulated boundary surface.
type Extractor struct {
	// MinVoxels is the smallest occupied voxel count worth meshing.
	MinVoxels int
	// SearchIters is the number of bisection steps used to place each
	// vertex on the 0.5 iso-level.
	SearchIters int
}

// NewExtractor returns an extractor with the given settings.
func NewExtractor(minVoxels, searchIters int) *Extractor {
	return &Extractor{MinVoxels: minVoxels, SearchIters: searchIters}
}

// Extract builds the occupancy volume of keys in v, runs marching cubes at
// the 0.5 level, and maps the result through the image affine and then
// frame. Faces are wound outward in the final frame.
func (e *Extractor) Extract(v *atlas.VolumeAtlas, keys []int32, frame coords.Frame) (*mesh.Mesh, error) {
	occ := NewOccupancy(v, keys)
	if n := occ.Count(); n == 0 || n < e.MinVoxels {
		return nil, fmt.Errorf("%w: %d occupied, minimum %d", ErrTooFewVoxels, n, e.MinVoxels)
	}
	logger.Debug("occupancy built",
		zap.Int("voxels", occ.Count()),
		zap.String("bitmap", humanize.Bytes(occ.Bytes())))

	m := isoSurface(occ, e.SearchIters)
	if m.FaceCount() == 0 {
		return nil, mesh.ErrEmptyMesh
	}
	// Outward in index space first, so the handedness of the transform
	// alone decides whether to flip afterwards.
	if m.SignedVolume() < 0 {
		m.FlipWinding()
	}

	affine := v.Image.Affine
	m.MapVertices(func(p math.Vec3) math.Vec3 {
		return frame.Apply(affine.TransformPoint(p))
	})
	if (affine.Det3() < 0) != frame.ReversesWinding() {
		m.FlipWinding()
	}

	m.Clean()
	if m.FaceCount() == 0 {
		return nil, mesh.ErrEmptyMesh
	}
	return m, nil
}

// isoSurface runs marching cubes on a one-voxel grid and welds the result.
// Triangles are put in a canonical order first so the output does not
// depend on model3d's internal iteration order.
func isoSurface(occ *Occupancy, iters int) *mesh.Mesh {
	mc := model3d.MarchingCubesSearch(occ, 1, iters)

	slice := mc.TriangleSlice()
	tris := make([][3]math.Vec3, 0, len(slice))
	for _, t := range slice {
		tris = append(tris, canonicalTriangle([3]math.Vec3{
			fromCoord(t[0]), fromCoord(t[1]), fromCoord(t[2]),
		}))
	}
	sort.Slice(tris, func(i, j int) bool { return lessTriangle(tris[i], tris[j]) })
	return mesh.FromTriangles(tris, weldTolerance)
}

func fromCoord(c model3d.Coord3D) math.Vec3 {
	return math.Vec3{X: c.X, Y: c.Y, Z: c.Z}
}

// canonicalTriangle rotates t so its smallest vertex comes first, keeping
// the winding.
func canonicalTriangle(t [3]math.Vec3) [3]math.Vec3 {
	first := 0
	for i := 1; i < 3; i++ {
		if lessVec(t[i], t[first]) {
			first = i
		}
	}
	return [3]math.Vec3{t[first], t[(first+1)%3], t[(first+2)%3]}
}

func lessVec(a, b math.Vec3) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func lessTriangle(a, b [3]math.Vec3) bool {
	for i := range a {
		if a[i] != b[i] {
			return lessVec(a[i], b[i])
		}
	}
	return false
}
