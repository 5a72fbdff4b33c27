package timeline

import (
	"encoding/json"
	"fmt"
)

// Object is one resolved timeline object instance active on a layer.
//
// Content is opaque to this package; device kinds interpret it according
// to the mapping subtype of the layer the object sits on.
type Object struct {
	ID      string         `json:"id"`
	Layer   string         `json:"layer,omitempty"`
	Content map[string]any `json:"content,omitempty"`
}

// Number returns content[key] as a float64.
// It accepts every numeric type JSON, YAML or Go literals produce.
func (o Object) Number(key string) (float64, bool) {
	v, ok := o.Content[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns content[key] if it is a string.
func (o Object) String(key string) (string, bool) {
	s, ok := o.Content[key].(string)
	return s, ok
}

// Map returns content[key] if it is an object.
func (o Object) Map(key string) (map[string]any, bool) {
	m, ok := o.Content[key].(map[string]any)
	return m, ok
}

// StringMap flattens an object value into string values, formatting
// non-string scalars with %v. Nested objects are skipped.
func StringMap(m map[string]any) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch s := v.(type) {
		case string:
			out[k] = s
		case map[string]any, []any:
			continue
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", s)
		}
	}
	return out
}
