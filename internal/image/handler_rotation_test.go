package image_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/airbusgeo/georotate/internal/image"
	"github.com/airbusgeo/georotate/internal/image/mocks"
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/rotate"
	"github.com/airbusgeo/georotate/internal/utils/proj"
	"github.com/airbusgeo/godal"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

var _ = Describe("HandleRotation", func() {
	var (
		ctx       = context.Background()
		dir, in   string
		cog       *mocks.CogGenerator
		handler   image.Handler
		cfg       rotate.Config
		returnErr error
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "georotate")
		Expect(err).NotTo(HaveOccurred())
		in = filepath.Join(dir, "src.tif")
		createRaster(in, 3, 2, 2, nil)
		cog = &mocks.CogGenerator{}
		handler = image.NewHandleRotation(cog, filepath.Join(dir, "workspace"), nil)
		cfg = rotate.Config{Theta: 90, InputPath: in}
		Expect(cfg.Validate()).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	Describe("Transform", func() {
		JustBeforeEach(func() {
			returnErr = handler.Transform(ctx, cfg)
		})

		Context("in place", func() {
			It("should update the geotransform of the input", func() {
				Expect(returnErr).NotTo(HaveOccurred())
				meta, err := image.ReadMetadata(ctx, in)
				Expect(err).NotTo(HaveOccurred())
				Expect(meta.Transform.Rx()).NotTo(Equal(sourceTransform[1]))
			})
		})

		Context("with an output in a new directory", func() {
			var out string
			BeforeEach(func() {
				out = filepath.Join(dir, "rotated", "out.tif")
				cfg.OutputPath = out
			})

			It("should write a copy and leave the input untouched", func() {
				Expect(returnErr).NotTo(HaveOccurred())
				meta, err := image.ReadMetadata(ctx, in)
				Expect(err).NotTo(HaveOccurred())
				Expect([6]float64(meta.Transform)).To(Equal(sourceTransform))

				srcMeta := meta
				expected, err := rotate.TransformOnly(srcMeta, 90)
				Expect(err).NotTo(HaveOccurred())
				meta, err = image.ReadMetadata(ctx, out)
				Expect(err).NotTo(HaveOccurred())
				Expect(meta.Transform).To(Equal(*expected))
				Expect(meta.Bands).To(Equal(2))
			})
		})

		Context("with a projection", func() {
			BeforeEach(func() {
				crs, err := proj.CRSFromUserInput("EPSG:32631")
				Expect(err).NotTo(HaveOccurred())
				defer crs.Close()
				ds, err := godal.Open(in, godal.Update())
				Expect(err).NotTo(HaveOccurred())
				Expect(ds.SetSpatialRef(crs)).To(Succeed())
				Expect(ds.Close()).To(Succeed())
			})

			It("should keep the projection", func() {
				Expect(returnErr).NotTo(HaveOccurred())
				meta, err := image.ReadMetadata(ctx, in)
				Expect(err).NotTo(HaveOccurred())
				Expect(meta.Projection).To(ContainSubstring("32631"))
			})
		})

		Context("when the input does not exist", func() {
			BeforeEach(func() {
				cfg.InputPath = filepath.Join(dir, "missing.tif")
			})

			It("should return InputNotFound", func() {
				Expect(raster.IsError(returnErr, raster.InputNotFound)).To(BeTrue())
			})
		})
	})

	Describe("Resample", func() {
		var out string

		BeforeEach(func() {
			out = filepath.Join(dir, "out.tif")
			cfg.OutputPath = out
			cfg.Workers = 2
		})

		JustBeforeEach(func() {
			returnErr = handler.Resample(ctx, cfg)
		})

		Context("with a COG output", func() {
			BeforeEach(func() {
				cog.On("Rewrite", mock.Anything, out, dir).Return(nil)
			})

			It("should write the rotated raster and rewrite it as a COG", func() {
				Expect(returnErr).NotTo(HaveOccurred())
				cog.AssertExpectations(GinkgoT())

				meta, err := image.ReadMetadata(ctx, out)
				Expect(err).NotTo(HaveOccurred())
				Expect(meta.Width).To(Equal(2))
				Expect(meta.Height).To(Equal(3))
				Expect(meta.Bands).To(Equal(2))
			})
		})

		Context("without output", func() {
			BeforeEach(func() {
				cfg.OutputPath = ""
			})

			It("should refuse to resample in place", func() {
				Expect(returnErr).To(HaveOccurred())
				cog.AssertNotCalled(GinkgoT(), "Rewrite", mock.Anything, mock.Anything, mock.Anything)
			})
		})

		Context("when the input does not exist", func() {
			BeforeEach(func() {
				cfg.InputPath = filepath.Join(dir, "missing.tif")
			})

			It("should return InputNotFound", func() {
				Expect(raster.IsError(returnErr, raster.InputNotFound)).To(BeTrue())
				_, err := os.Stat(out)
				Expect(os.IsNotExist(err)).To(BeTrue())
			})
		})
	})
})
