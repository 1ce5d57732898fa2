package mesh

import (
	"errors"
	"fmt"
)

// ErrSimplification is returned when a mesh could not be reduced to its face
// budget. Simplify still hands back the unsimplified mesh alongside it.
var ErrSimplification = errors.New("mesh simplification failed")

// Decimator reduces a mesh to at most targetFaces triangles.
type Decimator interface {
	Decimate(m *Mesh, targetFaces int) (*Mesh, error)
}

// DecimatorFunc adapts a function to the Decimator interface.
type DecimatorFunc func(m *Mesh, targetFaces int) (*Mesh, error)

// Decimate calls f.
func (f DecimatorFunc) Decimate(m *Mesh, targetFaces int) (*Mesh, error) {
	return f(m, targetFaces)
}

// Simplify reduces m to at most targetFaces faces using d.
//
// Meshes already within budget are returned unchanged. When d is nil, fails,
// panics or returns a result that is empty, over budget or invalid, the
// original mesh is returned together with an error wrapping
// ErrSimplification so the caller can still export it.
func Simplify(m *Mesh, targetFaces int, d Decimator) (out *Mesh, err error) {
	if targetFaces <= 0 {
		return m, fmt.Errorf("%w: face budget must be positive, got %d", ErrSimplification, targetFaces)
	}
	if m.FaceCount() <= targetFaces {
		return m, nil
	}
	if d == nil {
		return m, fmt.Errorf("%w: no decimator available", ErrSimplification)
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = m, fmt.Errorf("%w: decimator panicked: %v", ErrSimplification, r)
		}
	}()

	reduced, derr := d.Decimate(m, targetFaces)
	switch {
	case derr != nil:
		return m, fmt.Errorf("%w: %v", ErrSimplification, derr)
	case reduced == nil || reduced.FaceCount() == 0:
		return m, fmt.Errorf("%w: decimator produced an empty mesh", ErrSimplification)
	case reduced.FaceCount() > targetFaces:
		return m, fmt.Errorf("%w: %d faces left, budget %d", ErrSimplification, reduced.FaceCount(), targetFaces)
	}
	if verr := reduced.Validate(); verr != nil {
		return m, fmt.Errorf("%w: %v", ErrSimplification, verr)
	}
	return reduced, nil
}
