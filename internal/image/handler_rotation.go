package image

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/georotate/interface/storage"
	"github.com/airbusgeo/georotate/interface/storage/uri"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/resample"
	"github.com/airbusgeo/georotate/internal/rotate"
	"github.com/airbusgeo/georotate/internal/utils/affine"
	"github.com/airbusgeo/georotate/internal/utils/proj"
	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
)

// footprintSegments is the number of segments per edge of the lon/lat footprint
const footprintSegments = 8

// Handler runs the rotations on rasters stored locally or remotely (gs://, s3://)
type Handler interface {
	// Transform rotates the geotransform of the input, in place or on a copy
	Transform(ctx context.Context, cfg rotate.Config) error
	// Resample rotates the pixels of the input and writes them to the output
	Resample(ctx context.Context, cfg rotate.Config) error
}

type handlerRotation struct {
	cog            CogGenerator
	workspace      string
	creationParams []string
}

// NewHandleRotation creates a Handler.
// cog may be nil (no COG rewriting). Remote outputs are written in workspace before being uploaded.
// creationParams are KEY=VALUE GTiff creation options.
func NewHandleRotation(cog CogGenerator, workspace string, creationParams []string) Handler {
	return &handlerRotation{
		cog:            cog,
		workspace:      workspace,
		creationParams: creationParams,
	}
}

// checkInput returns InputNotFound if the input does not exist
func (h *handlerRotation) checkInput(ctx context.Context, input string) (uri.DefaultUri, error) {
	return inputExists(ctx, input)
}

// inputExists parses input and returns InputNotFound if it does not resolve to an existing file
func inputExists(ctx context.Context, input string) (uri.DefaultUri, error) {
	inURI, err := uri.ParseUri(input)
	if err != nil {
		return inURI, raster.NewInputNotFound("%s: %v", input, err)
	}
	if _, err := inURI.Exist(ctx); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return inURI, raster.NewInputNotFound("%s does not exist", input)
		}
		return inURI, fmt.Errorf("failed to check existence of %s: %w", input, err)
	}
	return inURI, nil
}

// openError classifies a GDAL failure to open path: InputNotFound if the file does not exist,
// a plain error otherwise (corrupt file, unsupported format...)
func openError(ctx context.Context, path string, err error) error {
	if _, xerr := inputExists(ctx, path); raster.IsError(xerr, raster.InputNotFound) {
		return xerr
	}
	return fmt.Errorf("failed to open %s: %w", path, err)
}

// Transform implements Handler
func (h *handlerRotation) Transform(ctx context.Context, cfg rotate.Config) error {
	ctx = log.With(ctx, "input", cfg.InputPath)
	inURI, err := h.checkInput(ctx, cfg.InputPath)
	if err != nil {
		return err
	}

	meta, err := ReadMetadata(ctx, inURI.String())
	if err != nil {
		return err
	}
	transform, err := rotate.TransformOnly(meta, cfg.Theta)
	if err != nil {
		return err
	}

	if err := h.applyTransform(ctx, cfg, inURI, transform); err != nil {
		return err
	}
	meta.Transform = *transform
	logFootprint(ctx, meta)
	return nil
}

func (h *handlerRotation) applyTransform(ctx context.Context, cfg rotate.Config, inURI uri.DefaultUri, transform *affine.Affine) error {
	if cfg.InPlace() {
		if inURI.IsLocal() {
			return PersistTransform(ctx, inURI.String(), transform)
		}
		// remote files cannot be updated by GDAL: download, update, upload
		workDir, err := h.newWorkDir()
		if err != nil {
			return err
		}
		defer h.cleanWorkspace(ctx, workDir)
		local := filepath.Join(workDir, inURI.FileName())
		if err := inURI.DownloadToFile(ctx, local); err != nil {
			return fmt.Errorf("failed to download %s: %w", cfg.InputPath, err)
		}
		if err := PersistTransform(ctx, local, transform); err != nil {
			return err
		}
		return h.uploadFile(ctx, local, inURI)
	}

	return h.withOutput(ctx, cfg.OutputPath, func(output string) error {
		return CopyWithTransform(ctx, inURI.String(), output, transform, h.creationParams)
	})
}

// Resample implements Handler
func (h *handlerRotation) Resample(ctx context.Context, cfg rotate.Config) error {
	ctx = log.With(ctx, "input", cfg.InputPath)
	inURI, err := h.checkInput(ctx, cfg.InputPath)
	if err != nil {
		return err
	}
	if cfg.InPlace() {
		return fmt.Errorf("resampling cannot be done in place: an output is required")
	}
	resampler, err := resample.New(cfg.Resampling)
	if err != nil {
		return err
	}

	src, err := OpenSource(ctx, inURI.String())
	if err != nil {
		return err
	}
	defer src.Close()

	return h.withOutput(ctx, cfg.OutputPath, func(output string) error {
		creator := &GDALCreator{URI: output, CreationParams: h.creationParams}
		meta, err := rotate.Resample(ctx, src, creator, cfg.Theta, rotate.Workers(cfg.Workers), rotate.WithResampler(resampler))
		if err != nil {
			return err
		}
		log.Logger(ctx).Sugar().Infof("%s: %dx%d pixels, %d bands", cfg.OutputPath, meta.Width, meta.Height, meta.Bands)
		logFootprint(ctx, *meta)
		if h.cog != nil {
			return h.cog.Rewrite(ctx, output, filepath.Dir(output))
		}
		return nil
	})
}

// withOutput calls write with a local path, then uploads it if output is remote
func (h *handlerRotation) withOutput(ctx context.Context, output string, write func(string) error) error {
	outURI, err := uri.ParseUri(output)
	if err != nil {
		return fmt.Errorf("failed to parse output uri: %w", err)
	}
	if outURI.IsLocal() {
		if err := os.MkdirAll(filepath.Dir(outURI.String()), os.ModePerm); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		return write(outURI.String())
	}

	workDir, err := h.newWorkDir()
	if err != nil {
		return err
	}
	defer h.cleanWorkspace(ctx, workDir)

	local := filepath.Join(workDir, uuid.New().String()+".tif")
	if err := write(local); err != nil {
		return err
	}
	return h.uploadFile(ctx, local, outURI)
}

func (h *handlerRotation) newWorkDir() (string, error) {
	workDir := filepath.Join(h.workspace, uuid.New().String())
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return workDir, nil
}

// uploadFile uploads content from local file to storage file (URI) destination.
func (h *handlerRotation) uploadFile(ctx context.Context, source string, destination uri.DefaultUri) error {
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer f.Close()

	if err := destination.UploadFile(ctx, f); err != nil {
		return fmt.Errorf("failed to upload file to %s: %w", destination.String(), err)
	}
	log.Logger(ctx).Sugar().Debugf("%s uploaded", destination.String())
	return nil
}

// cleanWorkspace removes local workspace content.
func (h *handlerRotation) cleanWorkspace(ctx context.Context, workspace string) {
	if err := os.RemoveAll(workspace); err != nil {
		log.Logger(ctx).Sugar().Errorf("failed to clean workspace: %s", err.Error())
		return
	}
	log.Logger(ctx).Sugar().Debugf("Workspace cleaned")
}

// logFootprint logs the lon/lat footprint of the raster as WKT. Rasters without projection are skipped.
func logFootprint(ctx context.Context, meta raster.Metadata) {
	if meta.Projection == "" {
		return
	}
	crs, err := proj.CRSFromUserInput(meta.Projection)
	if err != nil {
		log.Logger(ctx).Warn("unable to read the projection", zap.Error(err))
		return
	}
	defer crs.Close()
	footprint, err := proj.ToLonLat(rotate.Footprint(meta), crs, footprintSegments)
	if err != nil {
		log.Logger(ctx).Warn("unable to compute the footprint", zap.Error(err))
		return
	}
	s, err := wkt.Marshal(footprint)
	if err != nil {
		log.Logger(ctx).Warn("unable to encode the footprint", zap.Error(err))
		return
	}
	log.Logger(ctx).Info("footprint", zap.String("wkt", s))
}
