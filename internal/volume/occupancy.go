package volume

import (
	gomath "math"

	"github.com/RoaringBitmap/roaring"
	"github.com/unixpickle/model3d/model3d"

	"github.com/Faultbox/atlasmesh/internal/atlas"
)

// Occupancy is a binary voxel volume stored as a bitmap of linear voxel
// indices. It implements model3d.Solid in voxel index space, where voxel
// (i, j, k) is centred on the integer point (i, j, k).
type Occupancy struct {
	Dims [3]int
	bits *roaring.Bitmap
	lo   [3]int
	hi   [3]int
}

// NewOccupancy marks every voxel of v whose label is one of keys.
func NewOccupancy(v *atlas.VolumeAtlas, keys []int32) *Occupancy {
	set := make(map[int32]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	o := &Occupancy{Dims: v.Image.Dims, bits: roaring.New()}
	for idx := range v.Image.Voxels {
		if _, ok := set[v.LabelAt(idx)]; ok {
			o.bits.Add(uint32(idx))
		}
	}
	o.computeBounds()
	return o
}

func (o *Occupancy) computeBounds() {
	o.lo = o.Dims
	o.hi = [3]int{-1, -1, -1}
	it := o.bits.Iterator()
	for it.HasNext() {
		idx := int(it.Next())
		c := [3]int{idx % o.Dims[0], (idx / o.Dims[0]) % o.Dims[1], idx / (o.Dims[0] * o.Dims[1])}
		for a := range c {
			o.lo[a] = min(o.lo[a], c[a])
			o.hi[a] = max(o.hi[a], c[a])
		}
	}
}

// Count returns the number of occupied voxels.
func (o *Occupancy) Count() int {
	return int(o.bits.GetCardinality())
}

// Bytes returns the in-memory size of the bitmap.
func (o *Occupancy) Bytes() uint64 {
	return o.bits.GetSizeInBytes()
}

// Get returns 1 for an occupied voxel and 0 otherwise, including outside
// the volume.
func (o *Occupancy) Get(i, j, k int) float64 {
	if i < 0 || j < 0 || k < 0 || i >= o.Dims[0] || j >= o.Dims[1] || k >= o.Dims[2] {
		return 0
	}
	if o.bits.Contains(uint32(i + o.Dims[0]*(j+o.Dims[1]*k))) {
		return 1
	}
	return 0
}

// Interp trilinearly interpolates occupancy at c.
func (o *Occupancy) Interp(c model3d.Coord3D) float64 {
	xs, xFracs := roundedCoords(c.X)
	ys, yFracs := roundedCoords(c.Y)
	zs, zFracs := roundedCoords(c.Z)
	var value float64
	for i, x := range xs {
		for j, y := range ys {
			for k, z := range zs {
				value += xFracs[i] * yFracs[j] * zFracs[k] * o.Get(x, y, z)
			}
		}
	}
	return value
}

// Min is one voxel below the occupied bounding box so the surface closes.
func (o *Occupancy) Min() model3d.Coord3D {
	return model3d.Coord3D{X: float64(o.lo[0] - 1), Y: float64(o.lo[1] - 1), Z: float64(o.lo[2] - 1)}
}

// Max is one voxel above the occupied bounding box.
func (o *Occupancy) Max() model3d.Coord3D {
	return model3d.Coord3D{X: float64(o.hi[0] + 1), Y: float64(o.hi[1] + 1), Z: float64(o.hi[2] + 1)}
}

// Contains reports whether occupancy at c reaches the 0.5 iso-level.
func (o *Occupancy) Contains(c model3d.Coord3D) bool {
	return model3d.InBounds(o, c) && o.Interp(c) >= 0.5
}

func roundedCoords(c float64) (vals [2]int, fracs [2]float64) {
	lo := int(gomath.Floor(c))
	hi := lo + 1
	loFrac := float64(hi) - c
	return [2]int{lo, hi}, [2]float64{loFrac, 1 - loFrac}
}
