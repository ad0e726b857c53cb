package rotate

import (
	"fmt"
	"math"

	"github.com/airbusgeo/georotate/internal/resample"
)

const (
	// DefaultTransformTheta is the default angle (degrees) of the metadata-only rotation
	DefaultTransformTheta = 90.
	// DefaultResampleTheta is the default angle (degrees) of the resampling rotation
	DefaultResampleTheta = 15.
)

// Modes of rotation
const (
	// ModeTransform rotates the geotransform only
	ModeTransform = "transform"
	// ModeResample rotates the pixels
	ModeResample = "resample"
)

// DefaultTheta returns the default angle of the mode
func DefaultTheta(mode string) float64 {
	if mode == ModeTransform {
		return DefaultTransformTheta
	}
	return DefaultResampleTheta
}

// Config of a rotation run
type Config struct {
	// Theta in degrees, counter-clockwise positive
	Theta      float64
	InputPath  string
	OutputPath string
	// Resampling method, only "near" is supported
	Resampling string
	// Workers is the number of bands processed concurrently (resampling only)
	Workers int
}

// InPlace returns true if the output is the input
func (c Config) InPlace() bool {
	return c.OutputPath == "" || c.OutputPath == c.InputPath
}

// Validate checks the configuration and sets the defaults
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("missing input path")
	}
	if math.IsNaN(c.Theta) || math.IsInf(c.Theta, 0) {
		return fmt.Errorf("invalid angle %v", c.Theta)
	}
	if c.Resampling == "" {
		c.Resampling = "near"
	}
	if _, err := resample.New(c.Resampling); err != nil {
		return err
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	return nil
}
