// Package raster describes a georeferenced raster independently of its storage
// and the collaborators used to read it band by band and write it back.
package raster

import (
	"context"
	"fmt"

	"github.com/airbusgeo/georotate/internal/utils/affine"
)

// Metadata describes a raster: its size, its bands and how pixels map to the CRS
type Metadata struct {
	Width, Height int
	Bands         int
	DType         DType
	// Transform maps pixel (col, row) to the CRS
	Transform affine.Affine
	// Projection is passed through as-is (WKT)
	Projection string
}

// ValidateGeometry checks that the raster can be rotated:
// it must have a size, finite coefficients and non-degenerate pixel steps.
func (m Metadata) ValidateGeometry() error {
	if m.Width <= 0 || m.Height <= 0 {
		return NewInvalidGeometry("raster size must be positive (got %dx%d)", m.Width, m.Height)
	}
	if !m.Transform.IsFinite() {
		return NewInvalidGeometry("non-finite geotransform %v", m.Transform)
	}
	if m.Transform.Rx() == 0 || m.Transform.Ry() == 0 {
		return NewInvalidGeometry("pixel step cannot be zero (x_step=%v, y_step=%v)", m.Transform.Rx(), m.Transform.Ry())
	}
	return nil
}

// Validate checks the geometry, the pixel type and the band count
func (m Metadata) Validate() error {
	if err := m.ValidateGeometry(); err != nil {
		return err
	}
	if !m.DType.Valid() {
		return NewUnsupportedPixelType("pixel type %s", m.DType)
	}
	if m.Bands < 1 {
		return fmt.Errorf("unsupported band count %d", m.Bands)
	}
	return nil
}

// Band is a single raster band held in memory, row-major (Pixels[row*Width+col])
type Band struct {
	Width, Height int
	Pixels        []float64
	NoData        float64
	HasNoData     bool
}

// NewBand allocates a band of width x height pixels initialized to zero
func NewBand(width, height int) *Band {
	return &Band{
		Width:  width,
		Height: height,
		Pixels: make([]float64, width*height),
	}
}

// NewBandWithNoData allocates a band whose pixels are all set to nodata
func NewBandWithNoData(width, height int, nodata float64) *Band {
	b := NewBand(width, height)
	b.SetNoData(nodata)
	for i := range b.Pixels {
		b.Pixels[i] = nodata
	}
	return b
}

// SetNoData declares nodata as the nodata value of the band
func (b *Band) SetNoData(nodata float64) {
	b.NoData = nodata
	b.HasNoData = true
}

// Fill returns the value used for pixels that have no source: nodata if declared, 0 otherwise
func (b *Band) Fill() float64 {
	if b.HasNoData {
		return b.NoData
	}
	return 0
}

// At returns the value of the pixel (col, row)
func (b *Band) At(col, row int) float64 {
	return b.Pixels[row*b.Width+col]
}

// Set sets the value of the pixel (col, row)
func (b *Band) Set(col, row int, v float64) {
	b.Pixels[row*b.Width+col] = v
}

// Clone returns a deep copy of the band
func (b *Band) Clone() *Band {
	c := *b
	c.Pixels = make([]float64, len(b.Pixels))
	copy(c.Pixels, b.Pixels)
	return &c
}

// CheckSize returns an error if the band is not width x height or if its buffer is inconsistent
func (b *Band) CheckSize(width, height int) error {
	if b.Width != width || b.Height != height {
		return fmt.Errorf("band is %dx%d, expected %dx%d", b.Width, b.Height, width, height)
	}
	if len(b.Pixels) != width*height {
		return fmt.Errorf("band buffer holds %d pixels, expected %d", len(b.Pixels), width*height)
	}
	return nil
}

// Source gives read access to a raster.
// Implementations are not required to be safe for concurrent use.
type Source interface {
	Metadata() Metadata
	// ReadBand reads the whole band (1-based index)
	ReadBand(ctx context.Context, index int) (*Band, error)
}

// Sink gives write access to a raster created by a Creator.
// Implementations are not required to be safe for concurrent use.
type Sink interface {
	// WriteBand writes the pixels of the band (1-based index), its nodata value if declared
	// and its statistics
	WriteBand(ctx context.Context, index int, band *Band) error
	Close() error
}

// Creator creates a new raster described by meta
type Creator interface {
	Create(ctx context.Context, meta Metadata) (Sink, error)
}
