package affine

import "math"

const (
	RadToDeg = 180 / math.Pi
	DegToRad = math.Pi / 180
)

// Mat2 is a row-major 2x2 matrix
type Mat2 [2][2]float64

// Identity2 returns the 2x2 identity matrix
func Identity2() Mat2 {
	return Mat2{{1, 0}, {0, 1}}
}

// Diagonal returns [[x, 0], [0, y]]
func Diagonal(x, y float64) Mat2 {
	return Mat2{{x, 0}, {0, y}}
}

// Rotation returns the counter-clockwise rotation matrix of theta degrees:
//
//	cos(theta)  -sin(theta)
//	sin(theta)   cos(theta)
func Rotation(theta float64) Mat2 {
	s, c := math.Sincos(theta * DegToRad)
	return Mat2{{c, -s}, {s, c}}
}

// Mul returns m·n
func (m Mat2) Mul(n Mat2) Mat2 {
	return Mat2{
		{m[0][0]*n[0][0] + m[0][1]*n[1][0], m[0][0]*n[0][1] + m[0][1]*n[1][1]},
		{m[1][0]*n[0][0] + m[1][1]*n[1][0], m[1][0]*n[0][1] + m[1][1]*n[1][1]},
	}
}

// Transpose returns the transposed matrix
func (m Mat2) Transpose() Mat2 {
	return Mat2{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}

// Det returns the determinant
func (m Mat2) Det() float64 {
	return m[0][0]*m[1][1] - m[0][1]*m[1][0]
}

// Inverse returns the inverse of m.
// The result is not finite if m is singular.
func (m Mat2) Inverse() Mat2 {
	idet := 1 / m.Det()
	return Mat2{
		{m[1][1] * idet, -m[0][1] * idet},
		{-m[1][0] * idet, m[0][0] * idet},
	}
}

// Apply returns m·(x, y)
func (m Mat2) Apply(x, y float64) (float64, float64) {
	return m[0][0]*x + m[0][1]*y, m[1][0]*x + m[1][1]*y
}

// AlmostEqual compares two matrices element-wise with tolerance eps
func (m Mat2) AlmostEqual(n Mat2, eps float64) bool {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(m[i][j]-n[i][j]) > eps {
				return false
			}
		}
	}
	return true
}
