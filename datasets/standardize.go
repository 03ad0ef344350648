package datasets

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// ValueKind distinguishes the four standardized shapes of a label value.
type ValueKind int

const (
	FloatScalar ValueKind = iota
	IntScalar
	FloatTensor
	IntTensor
)

func (k ValueKind) String() string {
	switch k {
	case FloatScalar:
		return "float"
	case IntScalar:
		return "int"
	case FloatTensor:
		return "float tensor"
	case IntTensor:
		return "int tensor"
	}
	return "unknown"
}

// Value is a standardized label value: either a scalar number, or a dense
// row-major tensor of float32 or int64 values.
type Value struct {
	Kind ValueKind

	// Missing is set when the raw value was absent and defaulted to zero.
	Missing bool

	f    float64
	i    int64
	fs   []float32
	is   []int64
	dims []int
}

// FloatValue wraps a float scalar.
func FloatValue(v float64) Value { return Value{Kind: FloatScalar, f: v} }

// IntValue wraps an integer scalar.
func IntValue(v int64) Value { return Value{Kind: IntScalar, i: v} }

// FloatTensorValue wraps float data with its dimensions.
func FloatTensorValue(data []float32, dims ...int) Value {
	return Value{Kind: FloatTensor, fs: data, dims: dims}
}

// IntTensorValue wraps integer data with its dimensions.
func IntTensorValue(data []int64, dims ...int) Value {
	return Value{Kind: IntTensor, is: data, dims: dims}
}

// IsTensor reports whether the value came from an iterable.
func (v Value) IsTensor() bool { return v.Kind == FloatTensor || v.Kind == IntTensor }

// IsInteger reports whether the value is integer typed.
func (v Value) IsInteger() bool { return v.Kind == IntScalar || v.Kind == IntTensor }

// Dims returns the tensor dimensions, nil for scalars.
func (v Value) Dims() []int { return v.dims }

// Size returns the number of elements.
func (v Value) Size() int {
	switch v.Kind {
	case FloatTensor:
		return len(v.fs)
	case IntTensor:
		return len(v.is)
	}
	return 1
}

// Float returns a scalar as float64; tensors return their first element.
func (v Value) Float() float64 {
	switch v.Kind {
	case IntScalar:
		return float64(v.i)
	case FloatTensor:
		if len(v.fs) > 0 {
			return float64(v.fs[0])
		}
	case IntTensor:
		if len(v.is) > 0 {
			return float64(v.is[0])
		}
	}
	return v.f
}

// Int returns an integer scalar; float scalars are truncated.
func (v Value) Int() int64 {
	if v.Kind == IntScalar {
		return v.i
	}
	return int64(v.Float())
}

// Floats returns the elements as float32, converting integer data.
func (v Value) Floats() []float32 {
	switch v.Kind {
	case FloatTensor:
		return v.fs
	case IntTensor:
		out := make([]float32, len(v.is))
		for i, x := range v.is {
			out[i] = float32(x)
		}
		return out
	case IntScalar:
		return []float32{float32(v.i)}
	}
	return []float32{float32(v.f)}
}

// Ints returns the elements as int64, truncating float data.
func (v Value) Ints() []int64 {
	switch v.Kind {
	case IntTensor:
		return v.is
	case FloatTensor:
		out := make([]int64, len(v.fs))
		for i, x := range v.fs {
			out[i] = int64(x)
		}
		return out
	case IntScalar:
		return []int64{v.i}
	}
	return []int64{int64(v.f)}
}

// Tensor converts the value into a gomlx tensor. Scalars become rank 0.
func (v Value) Tensor() *tensors.Tensor {
	switch v.Kind {
	case FloatTensor:
		return tensors.FromFlatDataAndDimensions(v.fs, v.dims...)
	case IntTensor:
		return tensors.FromFlatDataAndDimensions(v.is, v.dims...)
	case IntScalar:
		return tensors.FromFlatDataAndDimensions([]int64{v.i})
	}
	return tensors.FromFlatDataAndDimensions([]float32{float32(v.f)})
}

// Standardize normalizes a raw label value.
//
// Iterables (other than strings) become tensors: integer typed when their
// first element is an integer, float typed otherwise. Nested iterables are
// flattened row-major and must be rectangular. A nil value becomes a float
// zero flagged as Missing. Scalars are returned unchanged.
func Standardize(value any) (Value, error) {
	switch x := value.(type) {
	case nil:
		return Value{Kind: FloatScalar, Missing: true}, nil
	case Value:
		return x, nil
	case json.Number:
		return numberValue(x)
	case float64:
		return FloatValue(x), nil
	case float32:
		return FloatValue(float64(x)), nil
	case int:
		return IntValue(int64(x)), nil
	case int32:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil

	// native slices skip reflection
	case []float32:
		if len(x) == 0 {
			return Value{}, errors.Wrap(ErrMalformedValue, "empty iterable")
		}
		return FloatTensorValue(append([]float32(nil), x...), len(x)), nil
	case []float64:
		if len(x) == 0 {
			return Value{}, errors.Wrap(ErrMalformedValue, "empty iterable")
		}
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return FloatTensorValue(out, len(x)), nil
	case []int64:
		if len(x) == 0 {
			return Value{}, errors.Wrap(ErrMalformedValue, "empty iterable")
		}
		return IntTensorValue(append([]int64(nil), x...), len(x)), nil
	case []int:
		if len(x) == 0 {
			return Value{}, errors.Wrap(ErrMalformedValue, "empty iterable")
		}
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return IntTensorValue(out, len(x)), nil
	case string:
		return Value{}, errors.Wrapf(ErrMalformedValue, "text value %q", x)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Value{}, errors.Wrapf(ErrMalformedValue, "unsupported type %T", value)
	}
	return iterableValue(rv)
}

func numberValue(n json.Number) (Value, error) {
	if isIntLiteral(n) {
		i, err := n.Int64()
		if err == nil {
			return IntValue(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, errors.Wrapf(ErrMalformedValue, "number %q: %v", n, err)
	}
	return FloatValue(f), nil
}

func isIntLiteral(n json.Number) bool {
	return !strings.ContainsAny(string(n), ".eE")
}

func iterableValue(rv reflect.Value) (Value, error) {
	if rv.Len() == 0 {
		return Value{}, errors.Wrap(ErrMalformedValue, "empty iterable")
	}
	integer := isIntegerScalar(rv.Index(0).Interface())

	var dims []int
	var leaves []any
	if err := flatten(rv, 0, &dims, &leaves); err != nil {
		return Value{}, err
	}

	if integer {
		out := make([]int64, len(leaves))
		for i, l := range leaves {
			v, err := Standardize(l)
			if err != nil {
				return Value{}, err
			}
			out[i] = v.Int()
		}
		return IntTensorValue(out, dims...), nil
	}
	out := make([]float32, len(leaves))
	for i, l := range leaves {
		v, err := Standardize(l)
		if err != nil {
			return Value{}, err
		}
		out[i] = float32(v.Float())
	}
	return FloatTensorValue(out, dims...), nil
}

// flatten walks a nested iterable depth first, recording the length of each
// level and rejecting ragged nesting.
func flatten(rv reflect.Value, depth int, dims *[]int, leaves *[]any) error {
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	isList := rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	if isList && rv.Type().Elem().Kind() == reflect.Uint8 {
		return errors.Wrap(ErrMalformedValue, "byte strings are not numeric")
	}

	switch {
	case depth == len(*dims) && isList:
		if len(*leaves) > 0 {
			return errors.Wrap(ErrMalformedValue, "ragged nesting")
		}
		*dims = append(*dims, rv.Len())
	case depth < len(*dims) && isList:
		if rv.Len() != (*dims)[depth] {
			return errors.Wrapf(ErrMalformedValue, "ragged nesting at depth %d: %d != %d", depth, rv.Len(), (*dims)[depth])
		}
	case depth < len(*dims):
		return errors.Wrapf(ErrMalformedValue, "ragged nesting at depth %d", depth)
	default:
		*leaves = append(*leaves, rv.Interface())
		return nil
	}

	for i := range rv.Len() {
		if err := flatten(rv.Index(i), depth+1, dims, leaves); err != nil {
			return err
		}
	}
	return nil
}

func isIntegerScalar(v any) bool {
	switch x := v.(type) {
	case json.Number:
		return isIntLiteral(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
