package math

import "testing"

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 4, 0}
	l := v.Normalize().Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("zero vector should normalize to zero")
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -2}
	b := Vec3{3, 0, -1}
	if got := a.Min(b); got != (Vec3{1, 0, -2}) {
		t.Errorf("Min = %v", got)
	}
	if got := a.Max(b); got != (Vec3{3, 5, -1}) {
		t.Errorf("Max = %v", got)
	}
}

func TestTriangleArea2(t *testing.T) {
	got := TriangleArea2(Vec3{0, 0, 0}, Vec3{2, 0, 0}, Vec3{0, 2, 0})
	if got != 4 {
		t.Errorf("TriangleArea2 = %v, want 4", got)
	}
	if TriangleArea2(Vec3{}, Vec3{1, 1, 1}, Vec3{2, 2, 2}) != 0 {
		t.Error("collinear points should have zero area")
	}
}
