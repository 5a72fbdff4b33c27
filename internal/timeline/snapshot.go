package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the resolved timeline state at one instant.
//
// Layers are ordered. Each Object's Layer field carries its layer name.
type Snapshot struct {
	Time   time.Time
	Layers []Object
}

// NewSnapshot builds a snapshot, stamping each object with its layer name
// in the order given.
func NewSnapshot(t time.Time, layers ...Object) Snapshot {
	out := make([]Object, len(layers))
	copy(out, layers)
	return Snapshot{Time: t, Layers: out}
}

// Empty returns the all-empty snapshot at t.
func Empty(t time.Time) Snapshot {
	return Snapshot{Time: t}
}

// Layer returns the object on the named layer. If a layer name repeats,
// the last occurrence wins, matching projection order.
func (s Snapshot) Layer(name string) (Object, bool) {
	var found Object
	ok := false
	for _, obj := range s.Layers {
		if obj.Layer == name {
			found, ok = obj, true
		}
	}
	return found, ok
}

type wireSnapshot struct {
	Time   int64           `json:"time"`
	Layers json.RawMessage `json:"layers"`
}

// UnmarshalJSON decodes the wire form, preserving the key order of the
// "layers" object.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var wire wireSnapshot
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	layers, err := decodeLayers(wire.Layers)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	s.Time = time.UnixMilli(wire.Time)
	s.Layers = layers
	return nil
}

// MarshalJSON encodes the wire form with layers in snapshot order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"time":%d,"layers":{`, s.Time.UnixMilli())
	for i, obj := range s.Layers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(obj.Layer)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(struct {
			ID      string         `json:"id"`
			Content map[string]any `json:"content,omitempty"`
		}{obj.ID, obj.Content})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func decodeLayers(raw json.RawMessage) ([]Object, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("layers must be an object")
	}

	var layers []Object
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected layer key %v", keyTok)
		}

		var obj Object
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("layer %q: %w", name, err)
		}
		obj.Layer = name
		layers = append(layers, obj)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return layers, nil
}
