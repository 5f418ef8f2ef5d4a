package format

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
)

// maxDepth bounds normalization recursion; values nested deeper are
// wrapped rather than descended into.
const maxDepth = 10

// Normalize converts an arbitrary backend response value into a structure
// composed exclusively of map[string]any, []any, and JSON-representable
// scalars. It is total: it never returns an error and never panics on any
// input shape. A value that cannot be decomposed is wrapped as
// {"value": <string rendering>, "original_type": <type name>} — never
// returned as a bare string. The wrap rule holds at every recursion
// level, so a caller merging the result with extra keys always gets a
// mapping where the input was mapping- or object-shaped.
func Normalize(v any) any {
	return normalize(v, 0)
}

func normalize(v any, depth int) any {
	if v == nil {
		return nil
	}
	if depth > maxDepth {
		return wrapOpaque(v)
	}

	switch x := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return x
	case []byte:
		return string(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if val == nil {
				continue
			}
			out[k] = normalize(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			out = append(out, normalize(item, depth+1))
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface(), depth)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			val := iter.Value()
			if isNilValue(val) {
				continue
			}
			out[fmt.Sprint(iter.Key().Interface())] = normalize(val.Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, normalize(rv.Index(i).Interface(), depth+1))
		}
		return out
	case reflect.String:
		// Named string types and enum-like strings.
		return rv.String()
	}

	return decompose(v, depth)
}

// decompose handles model objects: first a JSON round-trip (which covers
// SDK structs with exported fields or custom marshalers), then the
// opaque-value wrap as the last resort.
func decompose(v any, depth int) any {
	if s, ok := v.(fmt.Stringer); ok {
		// Enum types from generated SDK code stringify to their symbolic
		// name, which is more useful than their numeric wire value.
		if rv := reflect.ValueOf(v); rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Uintptr {
			return s.String()
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return wrapOpaque(v)
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return wrapOpaque(v)
	}
	return normalize(plain, depth+1)
}

// wrapOpaque renders a value that cannot be decomposed. The result is a
// single-entry mapping rather than a bare string so that mapping-shaped
// slots never degrade to scalars.
func wrapOpaque(v any) map[string]any {
	return map[string]any{
		"value":         fmt.Sprint(v),
		"original_type": typeName(v),
	}
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// MergeInfo merges a normalized collection descriptor with the
// synthesized identity key and an optional separately-extracted config
// sub-mapping. It never fails and never drops the name key: a payload
// that did not normalize to a mapping is wrapped under "info" with a
// logged warning.
func MergeInfo(name string, payload any, config map[string]any) map[string]any {
	out := map[string]any{}
	switch cleaned := Normalize(payload).(type) {
	case map[string]any:
		for k, v := range cleaned {
			out[k] = v
		}
	case nil:
	default:
		slog.Warn("collection info did not normalize to a mapping, wrapping under info key",
			"type", typeName(payload))
		out["info"] = cleaned
	}
	out["name"] = name
	if len(config) > 0 {
		if _, ok := out["config"]; !ok {
			out["config"] = Normalize(config)
		}
	}
	return out
}
