// Package resample rotates and resizes raster bands with a nearest-neighbor
// interpolation: output pixels always carry a value of the source (or the fill
// value), so classified rasters keep their classes.
package resample

import (
	"fmt"
	"math"

	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/utils/affine"
	"golang.org/x/image/math/f64"
)

// Resampler rotates and resizes bands
type Resampler interface {
	// Rotate rotates the band counter-clockwise by degrees around its center.
	// The canvas is expanded so that the rotated band is not clipped,
	// pixels outside of the source are set to fill.
	Rotate(band *raster.Band, degrees, fill float64) (*raster.Band, error)
	// Resize resamples the band to width x height
	Resize(band *raster.Band, width, height int) (*raster.Band, error)
}

// NearestNeighbor is the nearest-neighbor Resampler
type NearestNeighbor struct{}

var _ Resampler = NearestNeighbor{}

// Methods returns the names of the supported resampling methods
func Methods() []string {
	return []string{"near"}
}

// New returns the resampler for the given method. Only "near" is supported.
func New(method string) (Resampler, error) {
	switch method {
	case "near", "nearest", "":
		return NearestNeighbor{}, nil
	}
	return nil, fmt.Errorf("unsupported resampling method %q (supported: %v)", method, Methods())
}

// 15 decimals: exact at multiples of 90°, avoids an extra row/col from cos(90°)=6e-17
func round15(v float64) float64 {
	return math.Round(v*1e15) / 1e15
}

// rotation returns the matrix mapping an output point to the source, in image
// coordinates (y pointing down). Output pixel p maps to R·p.
func rotation(degrees float64) f64.Aff3 {
	s, c := math.Sincos(-degrees * affine.DegToRad)
	s, c = round15(s), round15(c)
	return f64.Aff3{c, s, 0, -s, c, 0}
}

func translation(dx, dy float64) f64.Aff3 {
	return f64.Aff3{1, 0, dx, 0, 1, dy}
}

func matMul(p, q *f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		p[3*0+0]*q[3*0+0] + p[3*0+1]*q[3*1+0],
		p[3*0+0]*q[3*0+1] + p[3*0+1]*q[3*1+1],
		p[3*0+0]*q[3*0+2] + p[3*0+1]*q[3*1+2] + p[3*0+2],
		p[3*1+0]*q[3*0+0] + p[3*1+1]*q[3*1+0],
		p[3*1+0]*q[3*0+1] + p[3*1+1]*q[3*1+1],
		p[3*1+0]*q[3*0+2] + p[3*1+1]*q[3*1+2] + p[3*1+2],
	}
}

func apply(m *f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// ExpandedSize returns the size of the canvas needed to hold a width x height
// image rotated by degrees around its center
func ExpandedSize(width, height int, degrees float64) (int, int) {
	w, h := float64(width), float64(height)
	rot := rotation(degrees)
	s2d := translation(w/2, h/2)
	s2d = matMul(&s2d, &rot)
	s2d = matMul(&s2d, &f64.Aff3{1, 0, -w / 2, 0, 1, -h / 2})

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
		x, y := apply(&s2d, p[0], p[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return ceil(maxX - minX), ceil(maxY - minY)
}

// ceil ignores the floating point noise of the corner coordinates
func ceil(v float64) int {
	return int(math.Ceil(v - 1e-9))
}

// Rotate implements Resampler
func (NearestNeighbor) Rotate(band *raster.Band, degrees, fill float64) (*raster.Band, error) {
	if err := band.CheckSize(band.Width, band.Height); err != nil {
		return nil, err
	}
	if band.Width == 0 || band.Height == 0 {
		return nil, fmt.Errorf("cannot rotate an empty band")
	}
	nw, nh := ExpandedSize(band.Width, band.Height, degrees)

	// dst -> src: recentre on the new canvas, rotate, move back to the source center
	rot := rotation(degrees)
	s2d := translation(float64(band.Width)/2, float64(band.Height)/2)
	s2d = matMul(&s2d, &rot)
	s2d = matMul(&s2d, &f64.Aff3{1, 0, -float64(nw) / 2, 0, 1, -float64(nh) / 2})

	return transform(band, nw, nh, &s2d, fill), nil
}

// Resize implements Resampler
func (NearestNeighbor) Resize(band *raster.Band, width, height int) (*raster.Band, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if err := band.CheckSize(band.Width, band.Height); err != nil {
		return nil, err
	}
	if width == band.Width && height == band.Height {
		return band.Clone(), nil
	}
	s2d := f64.Aff3{
		float64(band.Width) / float64(width), 0, 0,
		0, float64(band.Height) / float64(height), 0,
	}
	return transform(band, width, height, &s2d, band.Fill()), nil
}

// transform samples each dst pixel center through s2d and copies the nearest source pixel.
// Pixels falling outside of the source are set to fill.
func transform(src *raster.Band, width, height int, s2d *f64.Aff3, fill float64) *raster.Band {
	dst := raster.NewBand(width, height)
	dst.NoData, dst.HasNoData = src.NoData, src.HasNoData
	for y := 0; y < height; y++ {
		dy := float64(y) + 0.5
		row := dst.Pixels[y*width : (y+1)*width]
		for x := range row {
			sx, sy := apply(s2d, float64(x)+0.5, dy)
			i, j := int(math.Floor(sx)), int(math.Floor(sy))
			if i < 0 || j < 0 || i >= src.Width || j >= src.Height {
				row[x] = fill
				continue
			}
			row[x] = src.Pixels[j*src.Width+i]
		}
	}
	return dst
}
