// Package coords maps native atlas coordinates (RAS millimetres) into the
// viewer frame shared by every exported mesh.
package coords

import (
	"errors"
	"fmt"
	gomath "math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Faultbox/atlasmesh/pkg/math"
)

// Frame errors.
var (
	ErrEmptyReference = errors.New("no reference vertices to centre the frame on")
	ErrFrameMismatch  = errors.New("frame does not map the reference centroid onto the target")
	ErrMaskSize       = errors.New("mask length does not match vertex count")
)

// CentroidMethod selects how the reference centroid is computed.
type CentroidMethod string

const (
	Median CentroidMethod = "median"
	Mean   CentroidMethod = "mean"
)

// CheckTolerance is the distance Check accepts between the mapped centroid
// and the target.
const CheckTolerance = 1e-6

// Frame is the run-wide coordinate transform. It is computed once from the
// reference surface and then only read.
//
//	Apply(p) = Remap(p)*Scale + Offset
type Frame struct {
	Scale  float64
	Target math.Vec3
	Offset math.Vec3
	Method CentroidMethod
}

// Remap reflects the medial-lateral axis and swaps the others so that
// superior points up and anterior points toward the viewer:
// (x, y, z) -> (-x, z, y).
func Remap(p math.Vec3) math.Vec3 {
	return math.Vec3{X: -p.X, Y: p.Z, Z: p.Y}
}

// NewFrame centres the masked reference vertices on target. A nil mask
// selects every vertex.
func NewFrame(vertices []math.Vec3, mask []bool, scale float64, target math.Vec3, method CentroidMethod) (Frame, error) {
	f := Frame{Scale: scale, Target: target, Method: method}
	raw, err := f.selectRaw(vertices, mask)
	if err != nil {
		return Frame{}, err
	}
	centroid, err := Centroid(raw, method)
	if err != nil {
		return Frame{}, err
	}
	f.Offset = target.Sub(centroid)
	return f, nil
}

// Raw maps p without the offset.
func (f Frame) Raw(p math.Vec3) math.Vec3 {
	return Remap(p).Scale(f.Scale)
}

// Apply maps p into the viewer frame.
func (f Frame) Apply(p math.Vec3) math.Vec3 {
	return f.Raw(p).Add(f.Offset)
}

// Matrix returns Apply as an affine matrix.
func (f Frame) Matrix() math.Mat4 {
	s := f.Scale
	return math.FromRows(
		[4]float64{-s, 0, 0, f.Offset.X},
		[4]float64{0, 0, s, f.Offset.Y},
		[4]float64{0, s, 0, f.Offset.Z},
	)
}

// ReversesWinding reports whether the frame mirrors space, which would turn
// faces inside out.
func (f Frame) ReversesWinding() bool {
	return f.Matrix().Det3() < 0
}

// Check recomputes the centroid of the mapped reference vertices and
// verifies it lands on Target.
func (f Frame) Check(vertices []math.Vec3, mask []bool) error {
	mapped, err := f.selectRaw(vertices, mask)
	if err != nil {
		return err
	}
	for i := range mapped {
		mapped[i] = mapped[i].Add(f.Offset)
	}
	c, err := Centroid(mapped, f.Method)
	if err != nil {
		return err
	}
	if d := c.Distance(f.Target); d > CheckTolerance || gomath.IsNaN(d) {
		return fmt.Errorf("%w: centroid %v, target %v (off by %g)", ErrFrameMismatch, c, f.Target, d)
	}
	return nil
}

func (f Frame) selectRaw(vertices []math.Vec3, mask []bool) ([]math.Vec3, error) {
	if mask != nil && len(mask) != len(vertices) {
		return nil, fmt.Errorf("%w: %d mask entries, %d vertices", ErrMaskSize, len(mask), len(vertices))
	}
	raw := make([]math.Vec3, 0, len(vertices))
	for i, v := range vertices {
		if mask == nil || mask[i] {
			raw = append(raw, f.Raw(v))
		}
	}
	if len(raw) == 0 {
		return nil, ErrEmptyReference
	}
	return raw, nil
}

// Centroid returns the per-axis median or mean of points. An even number of
// points takes the median as the average of the two middle values.
func Centroid(points []math.Vec3, method CentroidMethod) (math.Vec3, error) {
	if len(points) == 0 {
		return math.Vec3{}, ErrEmptyReference
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	var reduce func([]float64) float64
	switch method {
	case Median:
		reduce = median
	case Mean:
		reduce = func(v []float64) float64 { return stat.Mean(v, nil) }
	default:
		return math.Vec3{}, fmt.Errorf("unknown centroid method %q", method)
	}
	return math.Vec3{X: reduce(xs), Y: reduce(ys), Z: reduce(zs)}, nil
}

func median(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, v, nil)
	}
	return stat.Mean(v[n/2-1:n/2+1], nil)
}
