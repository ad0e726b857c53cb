package raster

import (
	"math"
	"strings"
)

// DType is one of supported DataTypes for raster
type DType int

// Supported DataTypes
const (
	DTypeUNDEFINED DType = iota
	DTypeUINT8
	DTypeUINT16
	DTypeUINT32
	DTypeINT16
	DTypeINT32
	DTypeFLOAT32
	DTypeFLOAT64
)

var minValues = [...]float64{-math.MaxFloat64, 0, 0, 0, math.MinInt16, math.MinInt32, -math.MaxFloat32, -math.MaxFloat64}

var maxValues = [...]float64{math.MaxFloat64, math.MaxUint8, math.MaxUint16, math.MaxUint32, math.MaxInt16, math.MaxInt32,
	math.MaxFloat32, math.MaxFloat64}

var names = [...]string{"UNDEFINED", "UINT8", "UINT16", "UINT32", "INT16", "INT32", "FLOAT32", "FLOAT64"}

// Valid returns true if the dtype is one of the supported pixel types
func (dtype DType) Valid() bool {
	return dtype > DTypeUNDEFINED && dtype <= DTypeFLOAT64
}

func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(names) {
		return "UNDEFINED"
	}
	return names[dtype]
}

// MinValue returns the lowest value representable by the dtype
func (dtype DType) MinValue() float64 {
	if !dtype.Valid() {
		return minValues[DTypeUNDEFINED]
	}
	return minValues[dtype]
}

// MaxValue returns the highest value representable by the dtype
func (dtype DType) MaxValue() float64 {
	if !dtype.Valid() {
		return maxValues[DTypeUNDEFINED]
	}
	return maxValues[dtype]
}

// Contains returns true if v can be stored as dtype without being clamped
func (dtype DType) Contains(v float64) bool {
	if math.IsNaN(v) {
		return dtype.IsFloatingPointFormat()
	}
	if math.IsInf(v, 0) {
		return dtype.IsFloatingPointFormat()
	}
	if !dtype.IsFloatingPointFormat() && v != math.Trunc(v) {
		return false
	}
	return v >= dtype.MinValue() && v <= dtype.MaxValue()
}

func (dtype DType) IsFloatingPointFormat() bool {
	switch dtype {
	case DTypeFLOAT32, DTypeFLOAT64:
		return true
	}
	return false
}

// DTypeFromString convert string dtype to DType
func DTypeFromString(dtype string) DType {
	switch strings.ToLower(dtype) {
	case "byte", "uint8":
		return DTypeUINT8
	case "uint16":
		return DTypeUINT16
	case "uint32":
		return DTypeUINT32
	case "int16":
		return DTypeINT16
	case "int32":
		return DTypeINT32
	case "float32":
		return DTypeFLOAT32
	case "float64":
		return DTypeFLOAT64
	default:
		return DTypeUNDEFINED
	}
}

// Size returns the size of the dtype in bytes
func (dtype DType) Size() int {
	switch dtype {
	case DTypeUINT8:
		return 1
	case DTypeUINT16, DTypeINT16:
		return 2
	case DTypeUINT32, DTypeINT32, DTypeFLOAT32:
		return 4
	case DTypeFLOAT64:
		return 8
	}
	panic("Unknown type")
}
