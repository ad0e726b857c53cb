package cmd

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/airbusgeo/georotate/interface/storage/gcs"
	"github.com/airbusgeo/georotate/interface/storage/s3"
	"github.com/airbusgeo/georotate/interface/storage/uri"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	osioGcs "github.com/airbusgeo/osio/gcs"
	osioS3 "github.com/airbusgeo/osio/s3"
)

type GDALConfig struct {
	BlockSize       string
	NumCachedBlocks int
	StorageDebug    bool
	WithGCS         bool
	WithS3          bool
	AwsRegion       string
	AwsEndpoint     string
	AwsCredentials  string
}

// S3Config returns the configuration of the s3 client
func (c *GDALConfig) S3Config() s3.Config {
	return s3.Config{
		Region:          c.AwsRegion,
		Endpoint:        c.AwsEndpoint,
		CredentialsFile: c.AwsCredentials,
	}
}

// GDALConfigFlags registers the GDAL and remote storage flags in fs
func GDALConfigFlags(fs *flag.FlagSet) *GDALConfig {
	gdalConfig := GDALConfig{}
	fs.StringVar(&gdalConfig.BlockSize, "gdalBlockSize", "1Mb", "gdal blocksize value")
	fs.IntVar(&gdalConfig.NumCachedBlocks, "gdalNumCachedBlocks", 500, "gdal blockcache value")
	fs.BoolVar(&gdalConfig.WithGCS, "with-gcs", false, "configure GDAL to use gcs storage (may need authentication)")
	fs.BoolVar(&gdalConfig.WithS3, "with-s3", false, "configure GDAL to use s3 storage (may need authentication)")
	fs.StringVar(&gdalConfig.AwsRegion, "aws-region", "", "define aws_region for GDAL to use s3 storage (--with-s3)")
	fs.StringVar(&gdalConfig.AwsEndpoint, "aws-endpoint", "", "define aws_endpoint for GDAL to use s3 storage (--with-s3)")
	fs.StringVar(&gdalConfig.AwsCredentials, "aws-shared-credentials-file", "", "define aws_shared_credentials_file for GDAL to use s3 storage (--with-s3)")
	fs.BoolVar(&gdalConfig.StorageDebug, "gdalStorageDebug", false, "enable storage debug to use custom gdal storage strategy")
	return &gdalConfig
}

type streamer interface {
	StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error)
}

// InitGDAL registers the GDAL drivers and the gs:// and s3:// handlers
func InitGDAL(ctx context.Context, gdalConfig *GDALConfig) error {
	os.Setenv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")

	godal.RegisterAll()

	if gdalConfig.WithGCS {
		var adapter streamer
		var err error
		if gdalConfig.StorageDebug {
			adapter, err = gcs.NewGsStrategy(ctx)
		} else {
			adapter, err = osioGcs.Handle(ctx)
		}
		if err != nil {
			return err
		}
		if err := registerHandler(gdalConfig, "gs://", adapter); err != nil {
			return err
		}
	}

	if gdalConfig.WithS3 {
		uri.SetS3Config(gdalConfig.S3Config())

		var adapter streamer
		if gdalConfig.StorageDebug {
			strategy, err := s3.NewS3Strategy(ctx, gdalConfig.S3Config())
			if err != nil {
				return err
			}
			adapter = strategy
		} else {
			s3Client, err := s3.NewClient(ctx, gdalConfig.S3Config())
			if err != nil {
				return err
			}
			osioS3Handle, err := osioS3.Handle(ctx, osioS3.S3Client(s3Client))
			if err != nil {
				return err
			}
			adapter = osioS3Handle
		}
		if err := registerHandler(gdalConfig, "s3://", adapter); err != nil {
			return err
		}
	}

	return nil
}

func registerHandler(gdalConfig *GDALConfig, prefix string, adapter streamer) error {
	a, err := osio.NewAdapter(adapter,
		osio.BlockSize(gdalConfig.BlockSize),
		osio.NumCachedBlocks(gdalConfig.NumCachedBlocks))
	if err != nil {
		return err
	}
	return godal.RegisterVSIHandler(prefix, a)
}

// LogStorageMetrics logs the reads done by the debug storage strategies
func LogStorageMetrics(ctx context.Context, gdalConfig *GDALConfig) {
	if gdalConfig.StorageDebug && gdalConfig.WithGCS {
		gcs.GetMetrics(ctx)
	}
}
