package image

import (
	"context"
	"fmt"

	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/airbusgeo/georotate/internal/utils/affine"
	"github.com/airbusgeo/godal"
)

// GDAL band metadata keys of the statistics
const (
	StatisticsMinimum = "STATISTICS_MINIMUM"
	StatisticsMaximum = "STATISTICS_MAXIMUM"
	StatisticsMean    = "STATISTICS_MEAN"
	StatisticsStdDev  = "STATISTICS_STDDEV"
)

// GDALSource reads a raster with GDAL
type GDALSource struct {
	URI  string
	ds   *godal.Dataset
	meta raster.Metadata
}

var _ raster.Source = &GDALSource{}

// OpenSource opens the raster at uri (local path or any GDAL-supported uri).
// The caller is responsible for closing the source.
func OpenSource(ctx context.Context, uri string) (*GDALSource, error) {
	ds, err := godal.Open(uri, godal.Drivers("GTiff"), ErrLogger)
	if err != nil {
		return nil, openError(ctx, uri, err)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, raster.NewInvalidGeometry("%s has no geotransform: %v", uri, err)
	}
	st := ds.Structure()
	return &GDALSource{
		URI: uri,
		ds:  ds,
		meta: raster.Metadata{
			Width:      st.SizeX,
			Height:     st.SizeY,
			Bands:      st.NBands,
			DType:      DTypeFromGDAL(st.DataType),
			Transform:  affine.Affine(gt),
			Projection: ds.Projection(),
		},
	}, nil
}

// Metadata implements raster.Source
func (s *GDALSource) Metadata() raster.Metadata {
	return s.meta
}

// ReadBand implements raster.Source
func (s *GDALSource) ReadBand(ctx context.Context, index int) (*raster.Band, error) {
	if index < 1 || index > s.meta.Bands {
		return nil, raster.NewBandIOFailure(index, fmt.Errorf("band index out of range [1, %d]", s.meta.Bands))
	}
	gband := s.ds.Bands()[index-1]
	band := raster.NewBand(s.meta.Width, s.meta.Height)
	if err := gband.Read(0, 0, band.Pixels, band.Width, band.Height); err != nil {
		return nil, raster.NewBandIOFailure(index, fmt.Errorf("read %s: %w", s.URI, err))
	}
	if nodata, ok := gband.NoData(); ok {
		band.SetNoData(nodata)
	}
	return band, nil
}

// Close releases the dataset
func (s *GDALSource) Close() error {
	return s.ds.Close()
}

// GDALCreator creates GeoTIFF rasters
type GDALCreator struct {
	URI string
	// CreationParams are KEY=VALUE GTiff creation options
	CreationParams []string
}

var _ raster.Creator = &GDALCreator{}

// Create implements raster.Creator. The raster is tiled, BIGTIFF if needed.
func (c *GDALCreator) Create(ctx context.Context, meta raster.Metadata) (raster.Sink, error) {
	dtype := DTypeToGDAL(meta.DType)
	if dtype == godal.Unknown {
		return nil, raster.NewUnsupportedPixelType("cannot create %s as %s", c.URI, meta.DType)
	}
	options := gtiffOptions(meta, c.CreationParams)
	ds, err := godal.Create(godal.GTiff, c.URI, meta.Bands, dtype, meta.Width, meta.Height, godal.CreationOption(options...), ErrLogger)
	if err != nil {
		return nil, fmt.Errorf("GDALCreator.Create[%s] with options %v: %w", c.URI, options, err)
	}
	if err := ds.SetGeoTransform(meta.Transform); err != nil {
		ds.Close()
		return nil, fmt.Errorf("GDALCreator.SetGeoTransform[%s]: %w", c.URI, err)
	}
	if meta.Projection != "" {
		if err := ds.SetProjection(meta.Projection); err != nil {
			ds.Close()
			return nil, fmt.Errorf("GDALCreator.SetProjection[%s]: %w", c.URI, err)
		}
	}
	return &gdalSink{uri: c.URI, ds: ds, meta: meta}, nil
}

type gdalSink struct {
	uri  string
	ds   *godal.Dataset
	meta raster.Metadata
}

// WriteBand implements raster.Sink
func (s *gdalSink) WriteBand(ctx context.Context, index int, band *raster.Band) error {
	if index < 1 || index > s.meta.Bands {
		return raster.NewBandIOFailure(index, fmt.Errorf("band index out of range [1, %d]", s.meta.Bands))
	}
	if err := band.CheckSize(s.meta.Width, s.meta.Height); err != nil {
		return raster.NewBandIOFailure(index, err)
	}
	gband := s.ds.Bands()[index-1]
	if band.HasNoData {
		if err := gband.SetNoData(band.NoData); err != nil {
			return raster.NewBandIOFailure(index, fmt.Errorf("set nodata: %w", err))
		}
	}
	if err := gband.Write(0, 0, band.Pixels, band.Width, band.Height); err != nil {
		return raster.NewBandIOFailure(index, fmt.Errorf("write %s: %w", s.uri, err))
	}
	if stats, ok := band.Statistics(); ok {
		if err := setStatistics(gband, stats); err != nil {
			return raster.NewBandIOFailure(index, err)
		}
	}
	return nil
}

func setStatistics(band godal.Band, stats raster.Statistics) error {
	for k, v := range map[string]float64{
		StatisticsMinimum: stats.Min,
		StatisticsMaximum: stats.Max,
		StatisticsMean:    stats.Mean,
		StatisticsStdDev:  stats.StdDev,
	} {
		if err := band.SetMetadata(k, utils.F64ToS(v)); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// Close implements raster.Sink
func (s *gdalSink) Close() error {
	if err := s.ds.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.uri, err)
	}
	return nil
}
