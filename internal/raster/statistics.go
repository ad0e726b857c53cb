package raster

import "math"

// Statistics of the valid pixels of a band
type Statistics struct {
	Min, Max     float64
	Mean, StdDev float64
	// Count is the number of valid pixels
	Count int
}

// Statistics computes min/max/mean/stddev of the band, ignoring nodata and NaN pixels.
// ok is false if the band has no valid pixel.
func (b *Band) Statistics() (stats Statistics, ok bool) {
	var sum, sum2 float64
	stats.Min, stats.Max = math.Inf(1), math.Inf(-1)
	nodataIsNaN := b.HasNoData && math.IsNaN(b.NoData)
	for _, v := range b.Pixels {
		if math.IsNaN(v) || (b.HasNoData && !nodataIsNaN && v == b.NoData) {
			continue
		}
		stats.Count++
		sum += v
		sum2 += v * v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	if stats.Count == 0 {
		return Statistics{}, false
	}
	n := float64(stats.Count)
	stats.Mean = sum / n
	// population variance, as GDAL does
	variance := sum2/n - stats.Mean*stats.Mean
	if variance < 0 {
		variance = 0
	}
	stats.StdDev = math.Sqrt(variance)
	return stats, true
}
