package math

import "math"

// Mat4 is a 4x4 matrix in column-major order.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float64

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// FromRows builds an affine matrix from its first three rows, as stored in
// the srow_x/srow_y/srow_z fields of a NIfTI header.
func FromRows(r0, r1, r2 [4]float64) Mat4 {
	return Mat4{
		r0[0], r1[0], r2[0], 0,
		r0[1], r1[1], r2[1], 0,
		r0[2], r1[2], r2[2], 0,
		r0[3], r1[3], r2[3], 1,
	}
}

// FromQuaternion builds the NIfTI qform affine from the quaternion parameters
// (b, c, d), voxel spacing, the qfac sign and the offset.
// The quaternion's a component is derived so the rotation is proper.
func FromQuaternion(b, c, d float64, spacing Vec3, qfac float64, offset Vec3) Mat4 {
	a := 1.0 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// Rotation by 180 degrees; renormalize (b, c, d).
		n := 1.0 / math.Sqrt(b*b+c*c+d*d)
		b, c, d = b*n, c*n, d*n
		a = 0
	} else {
		a = math.Sqrt(a)
	}
	if qfac < 0 {
		spacing.Z = -spacing.Z
	}

	r00, r01, r02 := a*a+b*b-c*c-d*d, 2*(b*c-a*d), 2*(b*d+a*c)
	r10, r11, r12 := 2*(b*c+a*d), a*a+c*c-b*b-d*d, 2*(c*d-a*b)
	r20, r21, r22 := 2*(b*d-a*c), 2*(c*d+a*b), a*a+d*d-c*c-b*b

	return FromRows(
		[4]float64{r00 * spacing.X, r01 * spacing.Y, r02 * spacing.Z, offset.X},
		[4]float64{r10 * spacing.X, r11 * spacing.Y, r12 * spacing.Z, offset.Y},
		[4]float64{r20 * spacing.X, r21 * spacing.Y, r22 * spacing.Z, offset.Z},
	)
}

// Translate returns a translation matrix.
func Translate(x, y, z float64) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Scale returns a scale matrix.
func Scale(x, y, z float64) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] =
				m[0*4+row]*other[col*4+0] +
					m[1*4+row]*other[col*4+1] +
					m[2*4+row]*other[col*4+2] +
					m[3*4+row]*other[col*4+3]
		}
	}
	return result
}

// TransformPoint transforms a point by this matrix (assumes w=1).
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	x := m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12]
	y := m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13]
	z := m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14]
	w := m[3]*p.X + m[7]*p.Y + m[11]*p.Z + m[15]
	if w != 0 && w != 1 {
		return Vec3{x / w, y / w, z / w}
	}
	return Vec3{x, y, z}
}

// TransformDirection transforms a direction vector (ignores translation).
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return Vec3{
		m[0]*d.X + m[4]*d.Y + m[8]*d.Z,
		m[1]*d.X + m[5]*d.Y + m[9]*d.Z,
		m[2]*d.X + m[6]*d.Y + m[10]*d.Z,
	}
}

// Det3 returns the determinant of the upper-left 3x3 (linear) part.
// A negative value means the matrix mirrors space.
func (m Mat4) Det3() float64 {
	return m[0]*(m[5]*m[10]-m[9]*m[6]) -
		m[4]*(m[1]*m[10]-m[9]*m[2]) +
		m[8]*(m[1]*m[6]-m[5]*m[2])
}

// Row returns row i (0..3) of the matrix.
func (m Mat4) Row(i int) [4]float64 {
	return [4]float64{m[i], m[4+i], m[8+i], m[12+i]}
}
