package image

import (
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/godal"
)

// DTypeToGDAL returns the godal.DataType of the dtype (godal.Unknown if not supported)
func DTypeToGDAL(dtype raster.DType) godal.DataType {
	switch dtype {
	case raster.DTypeUINT8:
		return godal.Byte
	case raster.DTypeUINT16:
		return godal.UInt16
	case raster.DTypeUINT32:
		return godal.UInt32
	case raster.DTypeINT16:
		return godal.Int16
	case raster.DTypeINT32:
		return godal.Int32
	case raster.DTypeFLOAT32:
		return godal.Float32
	case raster.DTypeFLOAT64:
		return godal.Float64
	}
	return godal.Unknown
}

// DTypeFromGDAL returns the raster.DType of the godal.DataType.
// Complex and unknown types are mapped to DTypeUNDEFINED.
func DTypeFromGDAL(dtype godal.DataType) raster.DType {
	switch dtype {
	case godal.Byte:
		return raster.DTypeUINT8
	case godal.UInt16:
		return raster.DTypeUINT16
	case godal.UInt32:
		return raster.DTypeUINT32
	case godal.Int16:
		return raster.DTypeINT16
	case godal.Int32:
		return raster.DTypeINT32
	case godal.Float32:
		return raster.DTypeFLOAT32
	case godal.Float64:
		return raster.DTypeFLOAT64
	}
	return raster.DTypeUNDEFINED
}
