package image_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/airbusgeo/georotate/internal/image"
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/rotate"
	"github.com/airbusgeo/georotate/internal/utils/affine"
	"github.com/airbusgeo/godal"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var sourceTransform = [6]float64{10, 1, 0, 20, 0, -1}

// createRaster creates a GTiff whose band b holds the ramp b, b+1, ...
func createRaster(path string, width, height, bands int, nodata *float64, options ...string) {
	ds, err := godal.Create(godal.GTiff, path, bands, godal.Byte, width, height, godal.CreationOption(options...))
	Expect(err).NotTo(HaveOccurred())
	Expect(ds.SetGeoTransform(sourceTransform)).To(Succeed())
	for b, band := range ds.Bands() {
		pixels := make([]float64, width*height)
		for i := range pixels {
			pixels[i] = float64((i + b + 1) % 200)
		}
		if nodata != nil {
			Expect(band.SetNoData(*nodata)).To(Succeed())
		}
		Expect(band.Write(0, 0, pixels, width, height)).To(Succeed())
	}
	Expect(ds.Close()).To(Succeed())
}

func readPixels(path string, band int) ([]float64, *godal.Dataset) {
	ds, err := godal.Open(path)
	Expect(err).NotTo(HaveOccurred())
	st := ds.Structure()
	pixels := make([]float64, st.SizeX*st.SizeY)
	Expect(ds.Bands()[band-1].Read(0, 0, pixels, st.SizeX, st.SizeY)).To(Succeed())
	return pixels, ds
}

var _ = Describe("GDALSource", func() {
	var (
		ctx     = context.Background()
		dir     string
		nodata  *float64
		src     *image.GDALSource
		openErr error
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "georotate")
		Expect(err).NotTo(HaveOccurred())
		nodata = nil
	})

	JustBeforeEach(func() {
		path := filepath.Join(dir, "src.tif")
		createRaster(path, 3, 2, 2, nodata)
		src, openErr = image.OpenSource(ctx, path)
	})

	AfterEach(func() {
		if src != nil {
			src.Close()
		}
		os.RemoveAll(dir)
	})

	It("should read the metadata", func() {
		Expect(openErr).NotTo(HaveOccurred())
		meta := src.Metadata()
		Expect(meta.Width).To(Equal(3))
		Expect(meta.Height).To(Equal(2))
		Expect(meta.Bands).To(Equal(2))
		Expect(meta.DType).To(Equal(raster.DTypeUINT8))
		Expect([6]float64(meta.Transform)).To(Equal(sourceTransform))
	})

	It("should read the bands", func() {
		Expect(openErr).NotTo(HaveOccurred())
		band, err := src.ReadBand(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(band.Pixels).To(Equal([]float64{2, 3, 4, 5, 6, 7}))
		Expect(band.HasNoData).To(BeFalse())
	})

	It("should fail to read a band out of range", func() {
		Expect(openErr).NotTo(HaveOccurred())
		_, err := src.ReadBand(ctx, 3)
		rerr, ok := raster.AsError(err, raster.BandIOFailure)
		Expect(ok).To(BeTrue())
		Expect(rerr.Band()).To(Equal(3))
	})

	Context("with a nodata value", func() {
		BeforeEach(func() {
			v := 0.
			nodata = &v
		})

		It("should declare the nodata value of the band", func() {
			band, err := src.ReadBand(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(band.HasNoData).To(BeTrue())
			Expect(band.NoData).To(Equal(0.))
		})
	})

	It("should fail on missing input", func() {
		_, err := image.OpenSource(ctx, filepath.Join(dir, "missing.tif"))
		Expect(raster.IsError(err, raster.InputNotFound)).To(BeTrue())
	})

	It("should not report an unreadable file as missing", func() {
		corrupt := filepath.Join(dir, "corrupt.tif")
		Expect(os.WriteFile(corrupt, []byte("not a geotiff"), 0644)).To(Succeed())
		_, err := image.OpenSource(ctx, corrupt)
		Expect(err).To(HaveOccurred())
		Expect(raster.IsError(err, raster.InputNotFound)).To(BeFalse())

		err = image.PersistTransform(ctx, corrupt, affine.NewAffine(0, 1, 0, 0, 0, -1))
		Expect(err).To(HaveOccurred())
		Expect(raster.IsError(err, raster.InputNotFound)).To(BeFalse())
	})
})

var _ = Describe("GDALCreator", func() {
	var (
		ctx = context.Background()
		dir string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "georotate")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("should write the rotated raster with its statistics", func() {
		in, out := filepath.Join(dir, "src.tif"), filepath.Join(dir, "out.tif")
		createRaster(in, 3, 2, 1, nil)
		src, err := image.OpenSource(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		defer src.Close()

		meta, err := rotate.Resample(ctx, src, &image.GDALCreator{URI: out}, 90)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Width).To(Equal(2))
		Expect(meta.Height).To(Equal(3))

		pixels, ds := readPixels(out, 1)
		defer ds.Close()
		Expect(pixels).To(Equal([]float64{3, 6, 2, 5, 1, 4}))
		gt, err := ds.GeoTransform()
		Expect(err).NotTo(HaveOccurred())
		Expect(gt).To(Equal([6]float64{10.5, 1, 0, 20.5, 0, -1}))
		band := ds.Bands()[0]
		Expect(band.Metadata(image.StatisticsMinimum)).To(Equal("1"))
		Expect(band.Metadata(image.StatisticsMaximum)).To(Equal("6"))
		Expect(band.Metadata(image.StatisticsMean)).To(Equal("3.5"))
	})

	It("should propagate the nodata value", func() {
		in, out := filepath.Join(dir, "src.tif"), filepath.Join(dir, "out.tif")
		nodata := 255.
		createRaster(in, 10, 10, 1, &nodata)
		src, err := image.OpenSource(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		defer src.Close()

		meta, err := rotate.Resample(ctx, src, &image.GDALCreator{URI: out}, 45)
		Expect(err).NotTo(HaveOccurred())

		pixels, ds := readPixels(out, 1)
		defer ds.Close()
		v, ok := ds.Bands()[0].NoData()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(nodata))
		Expect(pixels[0]).To(Equal(nodata))
		Expect(pixels[len(pixels)-1]).To(Equal(nodata))
		Expect(len(pixels)).To(Equal(meta.Width * meta.Height))
	})

	It("should refuse an unsupported pixel type", func() {
		c := &image.GDALCreator{URI: filepath.Join(dir, "out.tif")}
		_, err := c.Create(ctx, raster.Metadata{Width: 1, Height: 1, Bands: 1, DType: raster.DTypeUNDEFINED})
		Expect(raster.IsError(err, raster.UnsupportedPixelType)).To(BeTrue())
	})
})

var _ = Describe("Transform", func() {
	var (
		ctx       = context.Background()
		dir, in   string
		transform *affine.Affine
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "georotate")
		Expect(err).NotTo(HaveOccurred())
		in = filepath.Join(dir, "src.tif")
		createRaster(in, 4, 3, 1, nil)
		meta, err := image.ReadMetadata(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		transform, err = rotate.TransformOnly(meta, 30)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("should persist the transform in place", func() {
		Expect(image.PersistTransform(ctx, in, transform)).To(Succeed())
		pixels, ds := readPixels(in, 1)
		defer ds.Close()
		gt, err := ds.GeoTransform()
		Expect(err).NotTo(HaveOccurred())
		Expect(gt).To(Equal([6]float64(*transform)))
		Expect(pixels[:4]).To(Equal([]float64{1, 2, 3, 4}))
	})

	It("should copy the raster with the new transform", func() {
		out := filepath.Join(dir, "copy.tif")
		Expect(image.CopyWithTransform(ctx, in, out, transform, []string{"COMPRESS=LZW"})).To(Succeed())

		_, ds := readPixels(out, 1)
		gt, err := ds.GeoTransform()
		ds.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(gt).To(Equal([6]float64(*transform)))

		meta, err := image.ReadMetadata(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect([6]float64(meta.Transform)).To(Equal(sourceTransform))
	})

	It("should fail on missing input", func() {
		err := image.PersistTransform(ctx, filepath.Join(dir, "missing.tif"), transform)
		Expect(raster.IsError(err, raster.InputNotFound)).To(BeTrue())
	})
})

var _ = Describe("CogGenerator", func() {
	It("should rewrite a tiled raster as a COG with overviews", func() {
		ctx := context.Background()
		dir, err := os.MkdirTemp("", "georotate")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "raster.tif")
		createRaster(path, 1024, 1024, 1, nil, "TILED=YES")
		Expect(image.NewCogGenerator().Rewrite(ctx, path, dir)).To(Succeed())

		pixels, ds := readPixels(path, 1)
		defer ds.Close()
		Expect(ds.Structure().SizeX).To(Equal(1024))
		Expect(pixels[:3]).To(Equal([]float64{1, 2, 3}))
		Expect(ds.Bands()[0].Overviews()).NotTo(BeEmpty())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})
})

var _ = Describe("ParseCreationOption", func() {
	It("should parse KEY=VALUE", func() {
		k, v, err := image.ParseCreationOption("compress=DEFLATE")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal("COMPRESS"))
		Expect(v).To(Equal("DEFLATE"))
	})

	It("should refuse malformed options", func() {
		for _, opt := range []string{"COMPRESS", "=LZW", ""} {
			_, _, err := image.ParseCreationOption(opt)
			Expect(err).To(HaveOccurred(), opt)
		}
	})
})
