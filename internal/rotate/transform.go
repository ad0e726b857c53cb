package rotate

import (
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/utils/affine"
)

// TransformOnly returns the geotransform of meta with its linear part rotated by theta degrees.
// The origin is kept, the shear terms are replaced by those of the rotation. Pixels are untouched
// and nothing is persisted.
func TransformOnly(meta raster.Metadata, theta float64) (*affine.Affine, error) {
	if err := ValidateGeometry(meta); err != nil {
		return nil, err
	}
	return meta.Transform.RotateLinear(theta), nil
}
