package rotate

import (
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/resample"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type resampleOptions struct {
	workers   int
	resampler resample.Resampler
}

// Option configures Resample
type Option func(o *resampleOptions)

// Workers sets the number of bands processed concurrently (default: 1)
func Workers(n int) Option {
	return func(o *resampleOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithResampler replaces the nearest-neighbor resampler
func WithResampler(r resample.Resampler) Option {
	return func(o *resampleOptions) {
		o.resampler = r
	}
}

// ResampledMetadata returns the metadata of src rotated by theta degrees with the canvas
// expanded to hold the whole rotated raster. The transform is translated so that the
// geographic center of the raster is preserved, the other coefficients are unchanged.
func ResampledMetadata(src raster.Metadata, theta float64) (raster.Metadata, error) {
	if err := ValidateGeometry(src); err != nil {
		return raster.Metadata{}, err
	}
	xStep, yStep := src.Transform.Rx(), src.Transform.Ry()
	nw, nh := CanvasExtent(src.Width, src.Height, xStep, yStep, theta)
	// a one-pixel-wide raster with anisotropic steps may round down to nothing
	nw, nh = max(nw, 1), max(nh, 1)

	x0, y0 := src.Transform.Origin()
	xc := x0 + float64(src.Width)/2*xStep
	yc := y0 + float64(src.Height)/2*yStep

	dst := src
	dst.Width, dst.Height = nw, nh
	dst.Transform = *src.Transform.WithOrigin(xc-float64(nw)/2*xStep, yc-float64(nh)/2*yStep)
	return dst, nil
}

// Resample rotates the pixels of every band of src by theta degrees (counter-clockwise)
// around the center of the raster and writes them to a new raster created by dst.
// Pixels exposed by the rotation are set to the nodata value of the band, or 0 if it has none.
// Band failures abort the run: the output is closed and left as-is.
func Resample(ctx context.Context, src raster.Source, dst raster.Creator, theta float64, opts ...Option) (*raster.Metadata, error) {
	o := resampleOptions{workers: 1, resampler: resample.NearestNeighbor{}}
	for _, opt := range opts {
		opt(&o)
	}

	meta := src.Metadata()
	if !meta.DType.Valid() {
		return nil, raster.NewUnsupportedPixelType("pixel type %s", meta.DType)
	}
	outMeta, err := ResampledMetadata(meta, theta)
	if err != nil {
		return nil, err
	}

	log.Logger(ctx).Debug("rotating raster",
		zap.Float64("theta", theta),
		zap.Int("width", meta.Width), zap.Int("height", meta.Height),
		zap.Int("newWidth", outMeta.Width), zap.Int("newHeight", outMeta.Height),
		zap.Float64s("center", Center(meta).FlatCoords()))

	sink, err := dst.Create(ctx, outMeta)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	var srcMu, dstMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := 1; i <= meta.Bands; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			srcMu.Lock()
			band, err := src.ReadBand(gctx, i)
			srcMu.Unlock()
			if err != nil {
				return asBandIOFailure(i, err)
			}

			rotated, err := o.resampler.Rotate(band, theta, band.Fill())
			if err != nil {
				return raster.NewBandIOFailure(i, fmt.Errorf("rotate: %w", err))
			}
			resized, err := o.resampler.Resize(rotated, outMeta.Width, outMeta.Height)
			if err != nil {
				return raster.NewBandIOFailure(i, fmt.Errorf("resize: %w", err))
			}

			bctx := log.WithFields(gctx, zap.Int("band", i), zap.Int("width", resized.Width), zap.Int("height", resized.Height))
			log.Logger(bctx).Sugar().Infof("writing band %d/%d", i, meta.Bands)
			dstMu.Lock()
			defer dstMu.Unlock()
			if err := sink.WriteBand(gctx, i, resized); err != nil {
				return asBandIOFailure(i, err)
			}
			return nil
		})
	}

	err = g.Wait()
	if cerr := sink.Close(); cerr != nil {
		if err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		} else {
			log.Logger(ctx).Warn("close output", zap.Error(cerr))
		}
	}
	if err != nil {
		return nil, err
	}
	log.Logger(ctx).Info("all bands written")
	return &outMeta, nil
}

func asBandIOFailure(band int, err error) error {
	if raster.IsError(err, raster.BandIOFailure) {
		return err
	}
	return raster.NewBandIOFailure(band, err)
}
