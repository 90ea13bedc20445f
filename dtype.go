package embedstore

import (
	"fmt"
	"strings"
	"unsafe"

	"gopkg.in/yaml.v3"
)

// Key is the set of integer key types a store accepts. Keys reach the
// backend as the uint64 bit pattern of their sign-extended value.
type Key interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

// Element is the set of value element types a store accepts.
// Half precision rows are stored as uint16 bit patterns with DTypeFloat16.
type Element interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// DType names the element type of a table.
type DType uint8

const (
	// DTypeUnset leaves the element type to the store's type parameter.
	DTypeUnset DType = iota
	DTypeBool
	DTypeInt8
	DTypeInt16
	DTypeInt32
	DTypeInt64
	DTypeUint8
	DTypeUint16
	DTypeUint32
	DTypeUint64
	DTypeFloat16
	DTypeFloat32
	DTypeFloat64
)

var dtypeNames = [...]string{
	DTypeUnset:   "",
	DTypeBool:    "bool",
	DTypeInt8:    "int8",
	DTypeInt16:   "int16",
	DTypeInt32:   "int32",
	DTypeInt64:   "int64",
	DTypeUint8:   "uint8",
	DTypeUint16:  "uint16",
	DTypeUint32:  "uint32",
	DTypeUint64:  "uint64",
	DTypeFloat16: "float16",
	DTypeFloat32: "float32",
	DTypeFloat64: "float64",
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("DType(%d)", d)
}

// Valid reports whether d names a known element type or is unset.
func (d DType) Valid() bool { return int(d) < len(dtypeNames) }

// Size returns the element width in bytes, or 0 for DTypeUnset.
func (d DType) Size() int {
	switch d {
	case DTypeBool, DTypeInt8, DTypeUint8:
		return 1
	case DTypeInt16, DTypeUint16, DTypeFloat16:
		return 2
	case DTypeInt32, DTypeUint32, DTypeFloat32:
		return 4
	case DTypeInt64, DTypeUint64, DTypeFloat64:
		return 8
	default:
		return 0
	}
}

// ParseDType parses a DType name as produced by String. "half" and
// "fp16" are accepted for float16.
func ParseDType(s string) (DType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "half", "fp16":
		return DTypeFloat16, nil
	case "float", "fp32":
		return DTypeFloat32, nil
	case "double", "fp64":
		return DTypeFloat64, nil
	}
	for d, name := range dtypeNames {
		if name == s {
			return DType(d), nil
		}
	}
	return DTypeUnset, fmt.Errorf("%w: unknown dtype %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	v, err := ParseDType(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d DType) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// DTypeOf returns the DType matching V.
func DTypeOf[V Element]() DType {
	var zero V
	switch any(zero).(type) {
	case bool:
		return DTypeBool
	case int8:
		return DTypeInt8
	case int16:
		return DTypeInt16
	case int32:
		return DTypeInt32
	case int64:
		return DTypeInt64
	case uint8:
		return DTypeUint8
	case uint16:
		return DTypeUint16
	case uint32:
		return DTypeUint32
	case uint64:
		return DTypeUint64
	case float32:
		return DTypeFloat32
	case float64:
		return DTypeFloat64
	}
	return DTypeUnset
}

// compatible reports whether rows of V can hold elements of d.
func compatible[V Element](d DType) bool {
	native := DTypeOf[V]()
	return d == DTypeUnset || d == native || (d == DTypeFloat16 && native == DTypeUint16)
}

func elemSize[V Element]() int {
	var zero V
	return int(unsafe.Sizeof(zero))
}

func elemAlign[V Element]() uintptr {
	var zero V
	return unsafe.Alignof(zero)
}

// asBytes reinterprets a row slice as its bytes in host order.
func asBytes[V Element](v []V) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*elemSize[V]()) //nolint:gosec // rows are plain numeric memory
}

// asElems reinterprets bytes as elements. b must be aligned for V.
func asElems[V Element](b []byte) []V {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*V)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/elemSize[V]()) //nolint:gosec // alignment checked by callers
}
