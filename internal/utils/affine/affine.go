// Package to handle 2D affine transformations, following GDAL affine convention
package affine

import (
	"math"
	"math/big"
)

// Affine follows the GDAL transform convention:
// (x_origin, x_scale, x_shear, y_origin, y_shear, y_scale)
//
//	geo_x = a[0] + col*a[1] + row*a[2]
//	geo_y = a[3] + col*a[4] + row*a[5]
type Affine [6]float64

func NewAffine(a, b, c, d, e, f float64) *Affine {
	res := Affine([6]float64{a, b, c, d, e, f})
	return &res
}

// Translation creates a translation transform from (offx, offy)
func Translation(offx, offy float64) *Affine {
	return NewAffine(offx, 1.0, 0, offy, 0, 1.0)
}

// Scale creates a scale transform from (scalex, scaley)
func Scale(scalex, scaley float64) *Affine {
	return NewAffine(0, scalex, 0, 0, 0, scaley)
}

// Rx returns the X resolution
func (a *Affine) Rx() float64 {
	return a[1]
}

// Ry returns the Y resolution
func (a *Affine) Ry() float64 {
	return a[5]
}

// Origin returns the geographic coordinates of the upper-left corner of the pixel (0, 0)
func (a *Affine) Origin() (float64, float64) {
	return a[0], a[3]
}

// WithOrigin returns a copy of the transform translated so that pixel (0, 0) is at (x, y)
func (a *Affine) WithOrigin(x, y float64) *Affine {
	return NewAffine(x, a[1], a[2], y, a[4], a[5])
}

// Linear returns the 2x2 scale/shear sub-matrix
func (a *Affine) Linear() Mat2 {
	return Mat2{{a[1], a[2]}, {a[4], a[5]}}
}

// IsFinite returns false if any coefficient is NaN or infinite
func (a *Affine) IsFinite() bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Inverse creates the inverse of the affine transform.
// Inverse panics if it is not inversible
func (a *Affine) Inverse() *Affine {
	idet := 1.0 / (a[1]*a[5] - a[2]*a[4])
	res := Affine([6]float64{0, a[5] * idet, -a[2] * idet, 0, -a[4] * idet, a[1] * idet})
	res[0], res[3] = res.Transform(-a[0], -a[3])
	return &res
}

// RotateLinear returns a new transform whose linear part is diag(Rx, Ry)·R(theta).
// theta is in degrees, counter-clockwise.
// The origin is kept. Any shear of the receiver is dropped: the rotation always
// starts from the axis-aligned pixel grid.
func (a *Affine) RotateLinear(theta float64) *Affine {
	s := Diagonal(a[1], a[5]).Mul(Rotation(theta))
	return NewAffine(a[0], s[0][0], s[0][1], a[3], s[1][0], s[1][1])
}

const (
	prec = 128
)

// highPrecisionTransform, such as highPrecisionTransform(xs, x+1, sy, y+1, o) = highPrecisionTransform(xs, x, sy, y, o) + highPrecisionTransform(xs, 1, sy, 1, 0)
func highPrecisionTransform(sx, x, sy, y, o float64) float64 {
	sX := big.NewFloat(sx).SetPrec(prec)
	sY := big.NewFloat(sy).SetPrec(prec)
	X := big.NewFloat(x).SetPrec(prec)
	Y := big.NewFloat(y).SetPrec(prec)
	O := big.NewFloat(o).SetPrec(prec)
	r, _ := O.Add(O, sX.Mul(sX, X)).Add(O, sY.Mul(sY, Y)).Float64() // o + sx*x + sy*y
	return r
}

// Multiply merges the two affines transforms into one.
func (a *Affine) Multiply(b *Affine) *Affine {
	return NewAffine(
		highPrecisionTransform(a[1], b[0], a[2], b[3], a[0]),
		highPrecisionTransform(a[1], b[1], a[2], b[4], 0),
		highPrecisionTransform(a[1], b[2], a[2], b[5], 0),
		highPrecisionTransform(a[4], b[0], a[5], b[3], a[3]),
		highPrecisionTransform(a[4], b[1], a[5], b[4], 0),
		highPrecisionTransform(a[4], b[2], a[5], b[5], 0),
	)
}

// Transform applies the affine transform to the point (x, y)
func (a *Affine) Transform(x float64, y float64) (float64, float64) {
	return highPrecisionTransform(a[1], x, a[2], y, a[0]), highPrecisionTransform(a[4], x, a[5], y, a[3])
}
