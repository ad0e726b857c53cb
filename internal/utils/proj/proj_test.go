package proj_test

import (
	"github.com/airbusgeo/georotate/internal/utils/proj"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-geom"
)

var _ = Describe("CRSFromUserInput", func() {
	It("should parse epsg codes", func() {
		for _, input := range []string{"32631", "EPSG:32631", "epsg:32631"} {
			crs, err := proj.CRSFromUserInput(input)
			Expect(err).NotTo(HaveOccurred(), input)
			Expect(crs.AuthorityCode("PROJCS")).To(Equal("32631"))
			crs.Close()
		}
	})

	It("should refuse an invalid crs", func() {
		_, err := proj.CRSFromUserInput("EPSG:abc")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ToLonLat", func() {
	var square = func() *geom.Polygon {
		flat := []float64{500000, 0, 510000, 0, 510000, 10000, 500000, 10000, 500000, 0}
		return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	}

	It("should project and densify the footprint", func() {
		crs, err := proj.CRSFromUserInput("EPSG:32631")
		Expect(err).NotTo(HaveOccurred())
		defer crs.Close()

		p, err := proj.ToLonLat(square(), crs, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.SRID()).To(Equal(4326))

		flat := p.FlatCoords()
		Expect(flat).To(HaveLen(2 * (4*4 + 1)))
		Expect(flat[0]).To(BeNumerically("~", 3, 1e-6))
		Expect(flat[1]).To(BeNumerically("~", 0, 1e-6))
		Expect(flat[len(flat)-2:]).To(Equal(flat[:2]))
		for i := 0; i < len(flat); i += 2 {
			Expect(flat[i]).To(BeNumerically(">=", 3-1e-6))
			Expect(flat[i]).To(BeNumerically("<", 3.1))
		}
	})
})

var _ = Describe("FlatCoords", func() {
	It("should split and merge coordinates", func() {
		x, y := proj.FlatCoordToXY([]float64{1, 2, 3, 4})
		Expect(x).To(Equal([]float64{1, 3}))
		Expect(y).To(Equal([]float64{2, 4}))
		Expect(proj.XYToFlatCoord(x, y)).To(Equal([]float64{1, 2, 3, 4}))
	})
})
