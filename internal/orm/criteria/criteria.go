package criteria

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedKey is returned for bracket keys that cannot be normalized
var ErrMalformedKey = errors.New("malformed criteria key")

// KeyError describes a criteria key that failed normalization
type KeyError struct {
	Key    string
	Reason string
}

// Error implements the error interface
func (e *KeyError) Error() string {
	return fmt.Sprintf("malformed criteria key %q: %s", e.Key, e.Reason)
}

// Unwrap allows errors.Is(err, ErrMalformedKey)
func (e *KeyError) Unwrap() error {
	return ErrMalformedKey
}

// Criteria maps property paths to filter values
type Criteria map[string]Value

// FromMap converts a decoded map into Criteria
func FromMap(m map[string]any) (Criteria, error) {
	out := make(Criteria, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("criteria %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Keys returns the keys in sorted order
func (c Criteria) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a copy of c with the entries of other added. Entries of
// other win on key collisions.
func (c Criteria) Merge(other Criteria) Criteria {
	out := make(Criteria, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Normalize folds bracket keys into nested maps:
//
//	not[title]=x          -> not: {title: x}
//	publishedAt[archive]=y -> publishedAt: {archive: y}
//	tagGroup[]=z           -> tagGroup: z
//
// Keys sharing a base are merged. Plain keys are kept as they are.
func Normalize(c Criteria) (Criteria, error) {
	out := make(Criteria, len(c))
	for _, key := range c.Keys() {
		base, path, err := splitKey(key)
		if err != nil {
			return nil, err
		}
		value := c[key]
		for i := len(path) - 1; i >= 0; i-- {
			value = Value{kind: KindMap, fields: map[string]Value{path[i]: value}}
		}

		existing, ok := out[base]
		if !ok {
			out[base] = value
			continue
		}
		merged, err := mergeValues(existing, value)
		if err != nil {
			return nil, &KeyError{Key: key, Reason: err.Error()}
		}
		out[base] = merged
	}
	return out, nil
}

// splitKey parses "base[a][b]" into base and [a, b]. A trailing "[]" is dropped.
func splitKey(key string) (string, []string, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		if strings.IndexByte(key, ']') >= 0 {
			return "", nil, &KeyError{Key: key, Reason: "unbalanced brackets"}
		}
		return key, nil, nil
	}
	base := key[:open]
	if base == "" {
		return "", nil, &KeyError{Key: key, Reason: "missing property before bracket"}
	}

	var path []string
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, &KeyError{Key: key, Reason: "unexpected text after bracket"}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, &KeyError{Key: key, Reason: "unbalanced brackets"}
		}
		segment := rest[1:end]
		if strings.ContainsAny(segment, "[") {
			return "", nil, &KeyError{Key: key, Reason: "unbalanced brackets"}
		}
		rest = rest[end+1:]
		if segment == "" {
			if rest != "" {
				return "", nil, &KeyError{Key: key, Reason: "[] must be the last segment"}
			}
			break
		}
		path = append(path, segment)
	}
	return base, path, nil
}

func mergeValues(a, b Value) (Value, error) {
	if a.kind != KindMap || b.kind != KindMap {
		return Value{}, fmt.Errorf("conflicting values %s and %s", a, b)
	}
	out := make(map[string]Value, len(a.fields)+len(b.fields))
	for k, v := range a.fields {
		out[k] = v
	}
	for k, v := range b.fields {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		merged, err := mergeValues(existing, v)
		if err != nil {
			return Value{}, err
		}
		out[k] = merged
	}
	return Value{kind: KindMap, fields: out}, nil
}
