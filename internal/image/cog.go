package image

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/airbusgeo/cogger"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/airbusgeo/godal"
	"github.com/google/tiff"
	"github.com/google/uuid"
)

// OverviewsMinSize is the size under which no more overview is built
const OverviewsMinSize = 256

// CogGenerator turns a tiled GeoTIFF into a Cloud Optimized GeoTIFF
type CogGenerator interface {
	// Rewrite builds the overviews of the file at path and rewrites it as a COG, in place.
	Rewrite(ctx context.Context, path, workDir string) error
}

func NewCogGenerator() CogGenerator {
	return &cogGenerator{}
}

type cogGenerator struct{}

func (c *cogGenerator) Rewrite(ctx context.Context, path, workDir string) error {
	if err := c.buildOverviews(path); err != nil {
		return err
	}

	cogPath := filepath.Join(workDir, fmt.Sprintf("cog_%s.tif", uuid.New().String()))
	if err := c.rewriteTiff(path, cogPath); err != nil {
		os.Remove(cogPath)
		return fmt.Errorf("failed to rewrite COG file: %w", err)
	}
	if err := os.Rename(cogPath, path); err != nil {
		os.Remove(cogPath)
		return fmt.Errorf("failed to move COG file: %w", err)
	}
	log.Logger(ctx).Sugar().Debugf("%s rewritten as COG", path)
	return nil
}

// buildOverviews builds nearest-neighbor overviews, so that classes are preserved at every level
func (c *cogGenerator) buildOverviews(path string) error {
	ds, err := godal.Open(path, godal.Update(), ErrLogger)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := ds.BuildOverviews(godal.Resampling(godal.Nearest), godal.MinSize(OverviewsMinSize)); err != nil {
		ds.Close()
		return fmt.Errorf("failed to build overviews: %w", err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close tiff file: %w", err)
	}
	return nil
}

func (c *cogGenerator) rewriteTiff(src, dest string) error {
	file, fdesc, err := c.openDatasetTiffs(src)
	if err != nil {
		return fmt.Errorf("failed to open dataset tiffs: %w", err)
	}
	defer fdesc.Close()

	finalCogFile, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to rewrite cog: %w", err)
	}
	err = cogger.Rewrite(finalCogFile, file)
	return utils.MergeErrors(true, err, finalCogFile.Close())
}

func (c *cogGenerator) openDatasetTiffs(datasetFileName string) (tiff.ReadAtReadSeeker, io.Closer, error) {
	fd, err := godal.VSIOpen(datasetFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	return tiff.NewReadAtReadSeeker(fd), fd, nil
}
