package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	result := m.TransformPoint(Vec3{1, 2, 3})

	expected := Vec3{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformPointScale(t *testing.T) {
	m := Scale(2, 2, 2)
	result := m.TransformPoint(Vec3{1, 2, 3})

	expected := Vec3{2, 4, 6}
	if result != expected {
		t.Errorf("TransformPoint with scale: got %v, want %v", result, expected)
	}
}

func TestFromRows(t *testing.T) {
	// Typical MNI152 1mm affine (RAS, origin at voxel 90,126,72).
	m := FromRows(
		[4]float64{-1, 0, 0, 90},
		[4]float64{0, 1, 0, -126},
		[4]float64{0, 0, 1, -72},
	)

	got := m.TransformPoint(Vec3{90, 126, 72})
	want := Vec3{0, 0, 0}
	if got != want {
		t.Errorf("voxel origin: got %v, want %v", got, want)
	}

	if r := m.Row(1); r != [4]float64{0, 1, 0, -126} {
		t.Errorf("Row(1) = %v", r)
	}
	if d := m.Det3(); d != -1 {
		t.Errorf("Det3 = %f, want -1", d)
	}
}

func TestFromQuaternionIdentity(t *testing.T) {
	m := FromQuaternion(0, 0, 0, Vec3{2, 2, 2}, 1, Vec3{-90, -126, -72})

	got := m.TransformPoint(Vec3{45, 63, 36})
	if got.Distance(Vec3{0, 0, 0}) > 1e-9 {
		t.Errorf("got %v, want origin", got)
	}
}

func TestFromQuaternionQfac(t *testing.T) {
	m := FromQuaternion(0, 0, 0, Vec3{1, 1, 1}, -1, Vec3{})
	if m.Det3() >= 0 {
		t.Errorf("qfac=-1 should mirror z, det = %f", m.Det3())
	}
}

func TestFromQuaternionRotation(t *testing.T) {
	// 90 degrees about z: b=c=0, d=sin(45deg).
	d := math.Sin(math.Pi / 4)
	m := FromQuaternion(0, 0, d, Vec3{1, 1, 1}, 1, Vec3{})

	got := m.TransformPoint(Vec3{1, 0, 0})
	if got.Distance(Vec3{0, 1, 0}) > 1e-9 {
		t.Errorf("rotate x axis: got %v, want (0,1,0)", got)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(5, 5, 5).Mul(Scale(2, 3, 4))
	got := m.TransformDirection(Vec3{1, 1, 1})
	if got != (Vec3{2, 3, 4}) {
		t.Errorf("TransformDirection: got %v", got)
	}
}
