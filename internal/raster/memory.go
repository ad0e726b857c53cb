package raster

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a raster held in memory. It is both a Source and a Sink.
type Memory struct {
	Meta Metadata
	// Data holds Meta.Bands bands, nil until written
	Data []*Band
	// Stats holds the statistics computed when the band is written
	Stats []*Statistics

	mu     sync.Mutex
	closed bool
}

// NewMemory creates an empty in-memory raster described by meta
func NewMemory(meta Metadata) *Memory {
	return &Memory{
		Meta:  meta,
		Data:  make([]*Band, meta.Bands),
		Stats: make([]*Statistics, meta.Bands),
	}
}

// NewMemoryFromBands creates an in-memory raster from bands.
// All bands must have the size of meta.
func NewMemoryFromBands(meta Metadata, bands ...*Band) (*Memory, error) {
	meta.Bands = len(bands)
	m := NewMemory(meta)
	for i, b := range bands {
		if err := b.CheckSize(meta.Width, meta.Height); err != nil {
			return nil, fmt.Errorf("band %d: %w", i+1, err)
		}
		m.Data[i] = b.Clone()
	}
	return m, nil
}

// Metadata implements Source
func (m *Memory) Metadata() Metadata {
	return m.Meta
}

func (m *Memory) checkIndex(index int) error {
	if index < 1 || index > len(m.Data) {
		return fmt.Errorf("band index %d out of range [1, %d]", index, len(m.Data))
	}
	return nil
}

// ReadBand implements Source and returns a copy of the band
func (m *Memory) ReadBand(ctx context.Context, index int) (*Band, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkIndex(index); err != nil {
		return nil, NewBandIOFailure(index, err)
	}
	if m.Data[index-1] == nil {
		return nil, NewBandIOFailure(index, fmt.Errorf("band has not been written"))
	}
	return m.Data[index-1].Clone(), nil
}

// WriteBand implements Sink. Pixels are stored as-is.
func (m *Memory) WriteBand(ctx context.Context, index int, band *Band) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NewBandIOFailure(index, fmt.Errorf("raster is closed"))
	}
	if err := m.checkIndex(index); err != nil {
		return NewBandIOFailure(index, err)
	}
	if err := band.CheckSize(m.Meta.Width, m.Meta.Height); err != nil {
		return NewBandIOFailure(index, err)
	}
	m.Data[index-1] = band.Clone()
	if stats, ok := band.Statistics(); ok {
		m.Stats[index-1] = &stats
	}
	return nil
}

// Close implements Sink
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryCreator creates in-memory rasters and keeps track of the last one
type MemoryCreator struct {
	Last *Memory
}

// Create implements Creator
func (c *MemoryCreator) Create(ctx context.Context, meta Metadata) (Sink, error) {
	if !meta.DType.Valid() {
		return nil, NewUnsupportedPixelType("cannot create a raster of type %s", meta.DType)
	}
	c.Last = NewMemory(meta)
	return c.Last, nil
}
