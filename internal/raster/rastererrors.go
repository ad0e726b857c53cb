package raster

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	// InputNotFound: the source raster does not resolve
	InputNotFound ErrorCode = iota
	// InvalidGeometry: zero pixel step or non-finite transform
	InvalidGeometry
	// UnsupportedPixelType: the output cannot be created with the source pixel type
	UnsupportedPixelType
	// BandIOFailure: reading or writing a band failed
	BandIOFailure
)

type RasterError struct {
	code ErrorCode
	desc string
	band int
}

// NewInputNotFound creates a new error stating that the input raster cannot be found
func NewInputNotFound(desc string, a ...interface{}) error {
	return RasterError{code: InputNotFound, desc: fmt.Sprintf(desc, a...)}
}

// NewInvalidGeometry creates a new error stating that the geotransform cannot be used
func NewInvalidGeometry(desc string, a ...interface{}) error {
	return RasterError{code: InvalidGeometry, desc: fmt.Sprintf(desc, a...)}
}

// NewUnsupportedPixelType creates a new error stating that the pixel type is not handled
func NewUnsupportedPixelType(desc string, a ...interface{}) error {
	return RasterError{code: UnsupportedPixelType, desc: fmt.Sprintf(desc, a...)}
}

// NewBandIOFailure creates a new error stating that the band (1-based) failed to be read or written
func NewBandIOFailure(band int, err error) error {
	return RasterError{code: BandIOFailure, desc: fmt.Sprintf("band %d: %v", band, err), band: band}
}

// Error implements error
func (e RasterError) Error() string {
	return e.code.String() + ": " + e.desc
}

// Desc returns a description of the error
func (e RasterError) Desc() string {
	return e.desc
}

// Code returns the code of the error
func (e RasterError) Code() ErrorCode {
	return e.code
}

// Band returns the index of the band in failure (BandIOFailure only, 0 otherwise)
func (e RasterError) Band() int {
	return e.band
}

func (c ErrorCode) String() string {
	switch c {
	case InputNotFound:
		return "InputNotFound"
	case InvalidGeometry:
		return "InvalidGeometry"
	case UnsupportedPixelType:
		return "UnsupportedPixelType"
	case BandIOFailure:
		return "BandIOFailure"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// IsError tests whether error is a RasterError
func IsError(err error, code ErrorCode) bool {
	var rerr RasterError
	return errors.As(err, &rerr) && rerr.Code() == code
}

// AsError tests whether error is a RasterError and returns it
func AsError(err error, code ErrorCode) (RasterError, bool) {
	var rerr RasterError
	return rerr, errors.As(err, &rerr) && rerr.Code() == code
}
