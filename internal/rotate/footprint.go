package rotate

import (
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/twpayne/go-geom"
)

// Footprint returns the polygon covered by the raster in its CRS
func Footprint(meta raster.Metadata) *geom.Polygon {
	w, h := float64(meta.Width), float64(meta.Height)
	coords := make([]float64, 0, 10)
	for _, p := range [5][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}, {0, 0}} {
		x, y := meta.Transform.Transform(p[0], p[1])
		coords = append(coords, x, y)
	}
	return geom.NewPolygonFlat(geom.XY, coords, []int{len(coords)})
}

// Center returns the CRS coordinates of the center of the raster
func Center(meta raster.Metadata) *geom.Point {
	x, y := meta.Transform.Transform(float64(meta.Width)/2, float64(meta.Height)/2)
	return geom.NewPointFlat(geom.XY, []float64{x, y})
}
