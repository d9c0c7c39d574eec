// Package codec converts batch configurations to and from their persisted form.
//
// Encoding is JSON. Struct fields are written in declaration order and map keys
// sorted, so a given configuration always encodes to the same bytes. Unknown
// fields are ignored on decode and missing fields keep their zero value, which
// lets work units written by an older build be decoded by a newer one.
//
// Numbers held in untyped values (interface{} fields, map and slice elements) are
// decoded as int64 when integral and as float64 otherwise. Normalize brings a value
// into the same form, so a normalized configuration survives a round trip unchanged.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

const module = "codec"

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// Codec encodes and decodes configurations of type T.
type Codec[T any] struct {
	name string
}

// New returns a codec for T. The name appears in error messages.
func New[T any]() Codec[T] {
	var zero T
	return Codec[T]{name: fmt.Sprintf("%T", zero)}
}

// Encode serializes cfg.
func (c Codec[T]) Encode(cfg T) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("failed to encode %s", c.name), err, false)
	}
	return data, nil
}

// Decode deserializes data into a new T. Decode errors are not retryable.
func (c Codec[T]) Decode(data []byte) (T, error) {
	var cfg T
	if len(data) == 0 {
		return cfg, exception.NewBatchError(module, fmt.Sprintf("failed to decode %s: empty configuration", c.name), nil, false)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, exception.NewBatchError(module, fmt.Sprintf("failed to decode %s", c.name), err, false)
	}
	normalizeValue(reflect.ValueOf(&cfg).Elem())
	return cfg, nil
}

// Normalize returns v with every number converted to int64 when integral and to float64
// otherwise. Maps and slices are copied, the argument is not modified.
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		return normalizeNumber(x)
	case map[string]interface{}:
		return NormalizeMap(x)
	case []interface{}:
		if x == nil {
			return x
		}
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUnsigned(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUnsigned(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	}
	return v
}

// NormalizeMap applies Normalize to every value of m. A nil map stays nil.
func NormalizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, e := range m {
		out[k] = Normalize(e)
	}
	return out
}

func normalizeNumber(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return normalizeFloat(f)
}

func normalizeUnsigned(u uint64) interface{} {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func normalizeFloat(f float64) interface{} {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// normalizeValue rewrites the untyped values reachable from v in place.
func normalizeValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Ptr:
		if !v.IsNil() {
			normalizeValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				normalizeValue(f)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			normalizeValue(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() || v.Type().Elem() != anyType {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			if e := iter.Value(); !e.IsNil() {
				v.SetMapIndex(iter.Key(), reflect.ValueOf(Normalize(e.Interface())))
			}
		}
	case reflect.Interface:
		if !v.IsNil() && v.CanSet() && v.Type() == anyType {
			v.Set(reflect.ValueOf(Normalize(v.Interface())))
		}
	}
}
