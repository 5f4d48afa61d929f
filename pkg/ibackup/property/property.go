// Package property provides a forgiving view over decoded property lists.
//
// Descriptor files and catalog metadata blobs are free-form nested
// structures. Value wraps any decoded node and its accessors return the
// caller's default when a key is missing or holds a different kind, so
// callers can walk deep paths without checking every level:
//
//	name := dict.Get("Lockdown", "DeviceName").String("")
//	size := info.Get("$objects").Index(1).Get("Size").Int(0)
package property

import (
	"errors"
	"fmt"
	"time"

	"howett.net/plist"
)

// Kind identifies the type of node a Value holds.
type Kind int

// Node kinds, mirroring the property list data types.
const (
	KindNone Kind = iota
	KindString
	KindInteger
	KindReal
	KindBool
	KindDate
	KindData
	KindArray
	KindDict
	KindUID
)

// String returns the property list name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindData:
		return "data"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindUID:
		return "uid"
	default:
		return "none"
	}
}

// ErrNotDict is returned when a property list decodes to something other
// than a dictionary at the top level.
var ErrNotDict = errors.New("property list root is not a dictionary")

// Dict is a decoded property list dictionary.
type Dict map[string]interface{}

// Get walks nested dictionary keys starting at d.
func (d Dict) Get(path ...string) Value {
	return Of(map[string]interface{}(d)).Get(path...)
}

// Len returns the number of top-level keys.
func (d Dict) Len() int {
	return len(d)
}

// Value is an optional node in a decoded property list.
// The zero Value is absent and every accessor returns its default.
type Value struct {
	v interface{}
}

// Of wraps a decoded node.
func Of(v interface{}) Value {
	if d, ok := v.(Dict); ok {
		v = map[string]interface{}(d)
	}
	return Value{v: v}
}

// Raw returns the underlying decoded node, or nil when absent.
func (v Value) Raw() interface{} {
	return v.v
}

// Exists reports whether the value is present.
func (v Value) Exists() bool {
	return v.v != nil
}

// Kind reports which property list type the value holds.
func (v Value) Kind() Kind {
	switch v.v.(type) {
	case nil:
		return KindNone
	case string:
		return KindString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInteger
	case float32, float64:
		return KindReal
	case bool:
		return KindBool
	case time.Time:
		return KindDate
	case []byte:
		return KindData
	case []interface{}:
		return KindArray
	case map[string]interface{}:
		return KindDict
	case plist.UID:
		return KindUID
	default:
		return KindNone
	}
}

// Get walks nested dictionary keys. Any missing key or non-dictionary
// node along the path yields an absent Value.
func (v Value) Get(path ...string) Value {
	cur := v.v
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return Value{}
		}
		cur, ok = m[key]
		if !ok {
			return Value{}
		}
	}
	return Value{v: cur}
}

// Index returns the i-th element of an array value.
func (v Value) Index(i int) Value {
	arr, ok := v.v.([]interface{})
	if !ok || i < 0 || i >= len(arr) {
		return Value{}
	}
	return Value{v: arr[i]}
}

// String returns the string value or def.
func (v Value) String(def string) string {
	if s, ok := v.v.(string); ok {
		return s
	}
	return def
}

// Bool returns the boolean value or def.
func (v Value) Bool(def bool) bool {
	if b, ok := v.v.(bool); ok {
		return b
	}
	return def
}

// Int returns the integer value or def. Reals are truncated and UIDs are
// returned as their index.
func (v Value) Int(def int64) int64 {
	switch n := v.v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	case plist.UID:
		return int64(n)
	default:
		return def
	}
}

// Time returns the date value or def.
func (v Value) Time(def time.Time) time.Time {
	if t, ok := v.v.(time.Time); ok {
		return t
	}
	return def
}

// Data returns the raw bytes of a data value, or nil.
func (v Value) Data() []byte {
	if b, ok := v.v.([]byte); ok {
		return b
	}
	return nil
}

// Dict returns the dictionary value, or an empty Dict.
func (v Value) Dict() Dict {
	if m, ok := v.v.(map[string]interface{}); ok {
		return Dict(m)
	}
	return Dict{}
}

// Array returns the elements of an array value, or nil.
func (v Value) Array() []Value {
	arr, ok := v.v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Value, len(arr))
	for i, e := range arr {
		out[i] = Value{v: e}
	}
	return out
}

// Strings returns the string elements of an array value. Non-string
// elements are skipped.
func (v Value) Strings() []string {
	arr, ok := v.v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Decode parses an XML, binary or OpenStep property list whose root is a
// dictionary.
func Decode(data []byte) (Dict, error) {
	var root interface{}
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding property list: %w", err)
	}
	m, ok := root.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotDict, Of(root).Kind())
	}
	return Dict(m), nil
}
