package proj

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/twpayne/go-geom"
)

// CreateLonLatProj create a CoordinateTransform from/to the geographic lon/lat coordinates
func CreateLonLatProj(crs *godal.SpatialRef, inverse bool) (*godal.Transform, error) {
	lonlatCRS, err := CRSFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("CreateLonLatProj.%w", err)
	}

	var tr *godal.Transform
	if inverse {
		tr, err = godal.NewTransform(crs, lonlatCRS)
	} else {
		tr, err = godal.NewTransform(lonlatCRS, crs)
	}
	if err != nil {
		return nil, fmt.Errorf("CreateLonLatProj: %w", err)
	}
	return tr, nil
}

// CRSFromUserInput initialize a crs from epsg ("4326", "EPSG:4326"), proj4 or Wkt format.
// The caller is responsible for closing the crs.
func CRSFromUserInput(input string) (*godal.SpatialRef, error) {
	if epsg, err := strconv.Atoi(input); err == nil {
		return godal.NewSpatialRefFromEPSG(epsg)
	}
	if strings.HasPrefix(strings.ToLower(input), "epsg:") {
		epsg, err := strconv.Atoi(input[5:])
		if err != nil {
			return nil, fmt.Errorf("CRSFromUserInput: %w", err)
		}
		return godal.NewSpatialRefFromEPSG(epsg)
	}
	if strings.HasPrefix(input, "+") {
		return godal.NewSpatialRefFromProj4(input)
	}
	return godal.NewSpatialRefFromWKT(input)
}

var (
	crsEPSG     = map[int]*godal.SpatialRef{}
	crsEPSGLock sync.Mutex
)

// CRSFromEPSG initialize a crs from epsg (only once per epsg)
// DO NOT release the crs (it is kept for further uses)
func CRSFromEPSG(epsg int) (*godal.SpatialRef, error) {
	crsEPSGLock.Lock()
	defer crsEPSGLock.Unlock()

	if crs, ok := crsEPSG[epsg]; ok {
		return crs, nil
	}
	crs, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		return nil, fmt.Errorf("CRSFromEPSG: %w", err)
	}
	runtime.SetFinalizer(crs, func(crs *godal.SpatialRef) { crs.Close() })
	crsEPSG[epsg] = crs
	return crs, nil
}

// FlatCoordToXY splits flat into two arrays x, y
func FlatCoordToXY(flat []float64) (x []float64, y []float64) {
	n := len(flat) / 2
	x = make([]float64, n)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i], y[i] = flat[2*i], flat[2*i+1]
	}
	return x, y
}

// XYToFlatCoord merge two arrays x, y into one, interleaving coordinates.
func XYToFlatCoord(x []float64, y []float64) []float64 {
	flat := make([]float64, 0, 2*len(x))
	for i := range x {
		flat = append(flat, x[i], y[i])
	}
	return flat
}

// densify splits each edge of the ring into n segments
func densify(flat []float64, n int) []float64 {
	if n <= 1 || len(flat) < 4 {
		return flat
	}
	pts := make([]float64, 0, (len(flat)/2-1)*n*2+2)
	for i := 0; i+3 < len(flat); i += 2 {
		x1, y1, x2, y2 := flat[i], flat[i+1], flat[i+2], flat[i+3]
		for k := 0; k < n; k++ {
			t := float64(k) / float64(n)
			pts = append(pts, x1+t*(x2-x1), y1+t*(y2-y1))
		}
	}
	return append(pts, flat[len(flat)-2:]...)
}

// ToLonLat projects the exterior ring of the polygon (in crs coordinates) to lon/lat.
// Each edge is split into segmentsPerEdge segments before being projected.
func ToLonLat(polygon *geom.Polygon, crs *godal.SpatialRef, segmentsPerEdge int) (*geom.Polygon, error) {
	crsToLonLat, err := CreateLonLatProj(crs, true)
	if err != nil {
		return nil, fmt.Errorf("ToLonLat.%w", err)
	}
	defer crsToLonLat.Close()

	ring := polygon.LinearRing(0)
	lon, lat := FlatCoordToXY(densify(ring.FlatCoords(), segmentsPerEdge))
	if err := crsToLonLat.TransformEx(lon, lat, nil, nil); err != nil {
		return nil, fmt.Errorf("ToLonLat: %w", err)
	}
	flat := XYToFlatCoord(lon, lat)
	p := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	p.SetSRID(4326)
	return p, nil
}
