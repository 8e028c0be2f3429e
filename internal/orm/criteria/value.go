// Package criteria holds the caller-supplied filter map compiled by the
// filter package. Values are a small closed variant so nested forms such as
// `not[title]` or `tagGroup[]` survive without reflection.
package criteria

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the shape of a Value
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindList
	KindMap
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a criteria value: null, a scalar, a list of values or a map of values
type Value struct {
	kind   Kind
	scalar any
	list   []Value
	fields map[string]Value
}

// Null returns the null value
func Null() Value {
	return Value{kind: KindNull}
}

// Scalar wraps a string, bool, number or time.Time
func Scalar(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindScalar, scalar: v}
}

// List builds a list value
func List(values ...Value) Value {
	out := make([]Value, len(values))
	copy(out, values)
	return Value{kind: KindList, list: out}
}

// Strings builds a list of string scalars
func Strings(values ...string) Value {
	out := make([]Value, len(values))
	for i, s := range values {
		out[i] = Scalar(s)
	}
	return Value{kind: KindList, list: out}
}

// Map builds a map value
func Map(fields map[string]Value) Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return Value{kind: KindMap, fields: out}
}

// FromAny converts a decoded JSON/YAML/query-string value into a Value
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Scalar(t), nil
	case []string:
		return Strings(t...), nil
	case []any:
		out := make([]Value, 0, len(t))
		for i, item := range t {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, converted)
		}
		return Value{kind: KindList, list: out}, nil
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = converted
		}
		return Value{kind: KindMap, fields: out}, nil
	case map[any]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %v: %w", k, err)
			}
			out[fmt.Sprint(k)] = converted
		}
		return Value{kind: KindMap, fields: out}, nil
	default:
		return Value{}, fmt.Errorf("unsupported criteria value of type %T", v)
	}
}

// Kind returns the shape of the value
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsScalar reports whether the value is a scalar
func (v Value) IsScalar() bool {
	return v.kind == KindScalar
}

// IsList reports whether the value is a list
func (v Value) IsList() bool {
	return v.kind == KindList
}

// IsMap reports whether the value is a map
func (v Value) IsMap() bool {
	return v.kind == KindMap
}

// Raw returns the wrapped scalar, or nil for non-scalars
func (v Value) Raw() any {
	return v.scalar
}

// Items returns the elements of a list value
func (v Value) Items() []Value {
	return v.list
}

// Get returns the entry of a map value
func (v Value) Get(key string) (Value, bool) {
	item, ok := v.fields[key]
	return item, ok
}

// Keys returns the sorted keys of a map value
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of list items or map entries
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.fields)
	default:
		return 0
	}
}

// Scalars returns the scalar itself as a one-element slice, or every item of
// a list of scalars. ok is false for maps, null, and lists holding non-scalars.
func (v Value) Scalars() ([]any, bool) {
	switch v.kind {
	case KindScalar:
		return []any{v.scalar}, true
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, item := range v.list {
			if item.kind != KindScalar {
				return nil, false
			}
			out = append(out, item.scalar)
		}
		return out, true
	default:
		return nil, false
	}
}

// AsString returns the scalar as a string. Numbers and bools are formatted.
func (v Value) AsString() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	switch t := v.scalar.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.Format(time.RFC3339), true
	default:
		return fmt.Sprint(t), true
	}
}

var (
	truthy = map[string]bool{"true": true, "1": true, "on": true, "yes": true}
	falsy  = map[string]bool{"false": true, "0": true, "off": true, "no": true, "": true}
)

// AsBool coerces the value using the fixed token sets
// true/1/on/yes and false/0/off/no/"" (case-insensitive). ok is false for
// anything outside them, including null.
func (v Value) AsBool() (b bool, ok bool) {
	if v.kind != KindScalar {
		return false, false
	}
	switch t := v.scalar.(type) {
	case bool:
		return t, true
	case int:
		return intBool(int64(t))
	case int8:
		return intBool(int64(t))
	case int16:
		return intBool(int64(t))
	case int32:
		return intBool(int64(t))
	case int64:
		return intBool(t)
	case uint:
		return intBool(int64(t))
	case uint8:
		return intBool(int64(t))
	case uint16:
		return intBool(int64(t))
	case uint32:
		return intBool(int64(t))
	case uint64:
		if t > 1 {
			return false, false
		}
		return t == 1, true
	case float32:
		return floatBool(float64(t))
	case float64:
		return floatBool(t)
	case string:
		token := strings.ToLower(strings.TrimSpace(t))
		if truthy[token] {
			return true, true
		}
		if falsy[token] {
			return false, true
		}
	}
	return false, false
}

func intBool(n int64) (bool, bool) {
	switch n {
	case 1:
		return true, true
	case 0:
		return false, true
	default:
		return false, false
	}
}

func floatBool(f float64) (bool, bool) {
	switch f {
	case 1:
		return true, true
	case 0:
		return false, true
	default:
		return false, false
	}
}

// Any converts the value back to plain Go values
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, item := range v.fields {
			out[k] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// String formats the value for error messages and logs
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindScalar:
		if s, ok := v.scalar.(string); ok {
			return strconv.Quote(s)
		}
		return fmt.Sprint(v.scalar)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := v.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.fields[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}
