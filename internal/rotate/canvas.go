package rotate

import (
	"math"

	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/utils/affine"
)

// CanvasExtent returns the size in pixels of the raster holding a width x height raster
// of pixel steps (xStep, yStep) rotated by theta degrees.
// xStep and yStep must not be zero (see ValidateGeometry).
func CanvasExtent(width, height int, xStep, yStep, theta float64) (int, int) {
	xRange := math.Abs(float64(width) * xStep)
	yRange := math.Abs(float64(height) * yStep)

	s, c := math.Sincos(theta * affine.DegToRad)
	s, c = math.Abs(s), math.Abs(c)

	newX := xRange*c + yRange*s
	newY := yRange*c + xRange*s
	return int(math.Round(math.Abs(newX / xStep))), int(math.Round(math.Abs(newY / yStep)))
}

// ValidateGeometry returns an InvalidGeometry error if the raster cannot be rotated
func ValidateGeometry(meta raster.Metadata) error {
	return meta.ValidateGeometry()
}
