package mesh

import (
	"fmt"

	"github.com/Faultbox/atlasmesh/pkg/math"
)

// Submesh carves the part of a surface selected by a per-vertex mask.
//
// A face is kept only when all three of its vertices are inside the mask;
// boundary faces are never split or interpolated. The kept faces are
// compacted onto the vertices they reference, then degenerate faces and the
// vertices they orphan are removed. The shared surface is not modified.
//
// ErrEmptyMesh is returned when no face survives.
func Submesh(vertices []math.Vec3, faces [][3]uint32, mask []bool) (*Mesh, error) {
	if len(mask) != len(vertices) {
		return nil, fmt.Errorf("%w: %d mask entries, %d vertices", ErrMaskSize, len(mask), len(vertices))
	}

	kept := make([][3]uint32, 0)
	for i, f := range faces {
		for _, idx := range f {
			if int(idx) >= len(vertices) {
				return nil, fmt.Errorf("%w: face %d index %d", ErrDanglingIndex, i, idx)
			}
		}
		if mask[f[0]] && mask[f[1]] && mask[f[2]] {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyMesh
	}

	remap := make(map[uint32]uint32)
	sub := &Mesh{Faces: make([][3]uint32, len(kept))}
	for i, f := range kept {
		var nf [3]uint32
		for j, idx := range f {
			newIdx, ok := remap[idx]
			if !ok {
				newIdx = uint32(len(sub.Vertices))
				remap[idx] = newIdx
				sub.Vertices = append(sub.Vertices, vertices[idx])
			}
			nf[j] = newIdx
		}
		sub.Faces[i] = nf
	}

	sub.Clean()
	if sub.FaceCount() == 0 {
		return nil, ErrEmptyMesh
	}
	return sub, nil
}
