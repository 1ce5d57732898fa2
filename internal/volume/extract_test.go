package volume

import (
	"errors"
	"testing"

	"github.com/Faultbox/atlasmesh/internal/atlas"
	"github.com/Faultbox/atlasmesh/internal/atlastest"
	"github.com/Faultbox/atlasmesh/internal/coords"
	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/pkg/formats"
)

var identityFrame = coords.Frame{Scale: 1, Method: coords.Median}

func boxAtlas(t *testing.T, dims [3]int, lo, hi [3]int, srow [3][4]float32) *atlas.VolumeAtlas {
	t.Helper()
	voxels := make([]uint8, dims[0]*dims[1]*dims[2])
	atlastest.Box(voxels, dims, lo, hi, 5)
	img, err := formats.ParseNIfTI(atlastest.NIfTI(dims, voxels, srow))
	if err != nil {
		t.Fatalf("ParseNIfTI: %v", err)
	}
	return atlas.NewVolumeAtlas(img, []formats.LabelEntry{{Value: 5, Name: "Box"}})
}

func TestOccupancy(t *testing.T) {
	v := boxAtlas(t, [3]int{8, 8, 8}, [3]int{2, 3, 4}, [3]int{4, 4, 5}, atlastest.IsotropicSrow([3]float32{}))
	occ := NewOccupancy(v, []int32{5})

	if got := occ.Count(); got != 3*2*2 {
		t.Errorf("Count = %d, want 12", got)
	}
	if got := occ.Get(2, 3, 4); got != 1 {
		t.Errorf("Get(2,3,4) = %v, want 1", got)
	}
	if got := occ.Get(-1, 0, 0); got != 0 {
		t.Errorf("Get outside = %v, want 0", got)
	}
	lo, hi := occ.Min(), occ.Max()
	if lo.X != 1 || lo.Y != 2 || lo.Z != 3 {
		t.Errorf("Min = %v, want (1, 2, 3)", lo)
	}
	if hi.X != 5 || hi.Y != 5 || hi.Z != 6 {
		t.Errorf("Max = %v, want (5, 5, 6)", hi)
	}
	if got := NewOccupancy(v, []int32{9}).Count(); got != 0 {
		t.Errorf("Count of absent label = %d, want 0", got)
	}
}

func TestExtractBelowThreshold(t *testing.T) {
	// 2x2x2 = 8 voxels
	v := boxAtlas(t, [3]int{6, 6, 6}, [3]int{1, 1, 1}, [3]int{2, 2, 2}, atlastest.IsotropicSrow([3]float32{}))

	_, err := NewExtractor(20, 8).Extract(v, []int32{5}, identityFrame)
	if !errors.Is(err, ErrTooFewVoxels) {
		t.Fatalf("Extract error = %v, want ErrTooFewVoxels", err)
	}

	_, err = NewExtractor(0, 8).Extract(v, []int32{42}, identityFrame)
	if !errors.Is(err, ErrTooFewVoxels) {
		t.Fatalf("Extract of empty selection error = %v, want ErrTooFewVoxels", err)
	}
}

func TestExtractBox(t *testing.T) {
	tests := []struct {
		name string
		srow [3][4]float32
		// expected X range of the box after the frame reflects X
		minX, maxX float64
	}{
		{"identity affine", atlastest.IsotropicSrow([3]float32{}), -7.5, -3.5},
		{"mirrored affine", [3][4]float32{{-1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}, 3.5, 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := boxAtlas(t, [3]int{12, 12, 12}, [3]int{4, 4, 4}, [3]int{7, 7, 7}, tt.srow)
			m, err := NewExtractor(20, 8).Extract(v, []int32{5}, identityFrame)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if err := m.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if m.FaceCount() == 0 {
				t.Fatal("no faces")
			}
			if vol := m.SignedVolume(); vol <= 0 {
				t.Errorf("SignedVolume = %v, want positive (outward faces)", vol)
			}

			b := m.Bounds()
			const tol = 0.6
			if b.Min.X < tt.minX-tol || b.Min.X > tt.minX+tol {
				t.Errorf("Bounds.Min.X = %v, want about %v", b.Min.X, tt.minX)
			}
			if b.Max.X < tt.maxX-tol || b.Max.X > tt.maxX+tol {
				t.Errorf("Bounds.Max.X = %v, want about %v", b.Max.X, tt.maxX)
			}
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	v := boxAtlas(t, [3]int{10, 10, 10}, [3]int{2, 3, 2}, [3]int{6, 5, 7}, atlastest.IsotropicSrow([3]float32{-5, -5, -5}))
	e := NewExtractor(20, 8)

	first, err := e.Extract(v, []int32{5}, identityFrame)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := e.Extract(v, []int32{5}, identityFrame)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if !sameMesh(first, again) {
			t.Fatalf("run %d produced a different mesh", i+2)
		}
	}
}

func sameMesh(a, b *mesh.Mesh) bool {
	if len(a.Vertices) != len(b.Vertices) || len(a.Faces) != len(b.Faces) {
		return false
	}
	for i := range a.Vertices {
		if a.Vertices[i] != b.Vertices[i] {
			return false
		}
	}
	for i := range a.Faces {
		if a.Faces[i] != b.Faces[i] {
			return false
		}
	}
	return true
}
