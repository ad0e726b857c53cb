package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/airbusgeo/georotate/internal/utils/affine"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

var ErrLogger = godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL %d: %s", code, msg)
})

// bigTIFFThreshold is the number of pixels (all bands) above which BIGTIFF is required
const bigTIFFThreshold = 10000 * 10000

// gtiffOptions returns the creation options of a rotated raster, as KEY=VALUE.
// User options come last and take precedence.
func gtiffOptions(meta raster.Metadata, creationParams []string) []string {
	options := []string{"TILED=YES"}
	if meta.Width*meta.Height*meta.Bands > bigTIFFThreshold {
		options = append(options, "BIGTIFF=YES")
	}
	return append(options, creationParams...)
}

// translateOptions turns KEY=VALUE creation options into gdal_translate switches
func translateOptions(creationParams []string) []string {
	options := []string{"-of", "GTiff"}
	for _, co := range creationParams {
		options = append(options, "-co", co)
	}
	return options
}

func transformToS(a *affine.Affine) string {
	s := make([]string, len(a))
	for i, v := range a {
		s[i] = utils.F64ToS(v)
	}
	return strings.Join(s, " ")
}

// ParseCreationOption checks that opt is a KEY=VALUE creation option
func ParseCreationOption(opt string) (string, string, error) {
	kv := strings.SplitN(opt, "=", 2)
	if len(kv) != 2 || kv[0] == "" {
		return "", "", fmt.Errorf("invalid creation option %q: expecting KEY=VALUE", opt)
	}
	return strings.ToUpper(kv[0]), kv[1], nil
}

// ReadMetadata returns the metadata of the raster at uri
func ReadMetadata(ctx context.Context, uri string) (raster.Metadata, error) {
	src, err := OpenSource(ctx, uri)
	if err != nil {
		return raster.Metadata{}, err
	}
	defer src.Close()
	return src.Metadata(), nil
}

// PersistTransform updates the geotransform of the raster at uri in place.
// Pixels, projection and metadata are left untouched.
func PersistTransform(ctx context.Context, uri string, transform *affine.Affine) error {
	ds, err := godal.Open(uri, godal.Update(), ErrLogger)
	if err != nil {
		return openError(ctx, uri, err)
	}
	if err := ds.SetGeoTransform(*transform); err != nil {
		ds.Close()
		return fmt.Errorf("PersistTransform[%s]: %w", uri, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("PersistTransform.Close[%s]: %w", uri, err)
	}
	log.Logger(ctx).Debug("geotransform updated", zap.String("uri", uri), zap.String("transform", transformToS(transform)))
	return nil
}

// CopyWithTransform copies the raster at src to dst (GTiff) and sets the geotransform of the copy.
// creationParams are KEY=VALUE GTiff creation options.
func CopyWithTransform(ctx context.Context, src, dst string, transform *affine.Affine, creationParams []string) error {
	ds, err := godal.Open(src, ErrLogger)
	if err != nil {
		return openError(ctx, src, err)
	}
	defer ds.Close()

	options := translateOptions(creationParams)
	out, err := ds.Translate(dst, options, ErrLogger)
	if err != nil {
		return fmt.Errorf("CopyWithTransform.Translate[%s] with options [%v]: %w", src, options, err)
	}
	if err := out.SetGeoTransform(*transform); err != nil {
		out.Close()
		return fmt.Errorf("CopyWithTransform[%s]: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("CopyWithTransform.Close[%s]: %w", dst, err)
	}
	log.Logger(ctx).Debug("geotransform copied", zap.String("uri", dst), zap.String("transform", transformToS(transform)))
	return nil
}
