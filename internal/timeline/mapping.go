package timeline

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// DeviceKind identifies a device family and therefore its DeviceState shape.
type DeviceKind string

// Supported device kinds.
const (
	KindPanasonicPTZ DeviceKind = "panasonic_ptz"
	KindSingularLive DeviceKind = "singular_live"
)

// Valid reports whether k is a known device kind.
func (k DeviceKind) Valid() bool {
	switch k {
	case KindPanasonicPTZ, KindSingularLive:
		return true
	default:
		return false
	}
}

// MappingEntry binds one layer to one device property.
type MappingEntry struct {
	DeviceID string     `yaml:"device_id" json:"deviceId"`
	Kind     DeviceKind `yaml:"kind" json:"kind"`

	// Subtype selects which DeviceState field the layer drives.
	// Unknown subtypes are ignored during projection.
	Subtype string `yaml:"subtype,omitempty" json:"subtype,omitempty"`

	// CompositionName keys keyed-collection devices.
	CompositionName string `yaml:"composition_name,omitempty" json:"compositionName,omitempty"`
}

// Mapping is the layer→device table. It is read-only during reconciliation.
type Mapping map[string]MappingEntry

// Lookup returns the entry for layer, if any.
func (m Mapping) Lookup(layer string) (MappingEntry, bool) {
	e, ok := m[layer]
	return e, ok
}

// ForDevice returns the subset of entries that target deviceID.
func (m Mapping) ForDevice(deviceID string) Mapping {
	out := make(Mapping)
	for layer, e := range m {
		if e.DeviceID == deviceID {
			out[layer] = e
		}
	}
	return out
}

// Validate checks every entry, collecting all problems.
func (m Mapping) Validate() error {
	var errs []string

	layers := make([]string, 0, len(m))
	for layer := range m {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		e := m[layer]
		if e.DeviceID == "" {
			errs = append(errs, fmt.Sprintf("layer %q: device_id is required", layer))
		}
		if !e.Kind.Valid() {
			errs = append(errs, fmt.Sprintf("layer %q: unknown kind %q", layer, e.Kind))
		}
		if e.Kind == KindSingularLive && e.CompositionName == "" {
			errs = append(errs, fmt.Sprintf("layer %q: composition_name is required", layer))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMapping, strings.Join(errs, "; "))
	}
	return nil
}

type mappingFile struct {
	Layers Mapping `yaml:"layers"`
}

// LoadMapping reads and validates a YAML mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping parses and validates YAML mapping content.
func ParseMapping(data []byte) (Mapping, error) {
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing: %w", ErrInvalidMapping, err)
	}
	if f.Layers == nil {
		f.Layers = Mapping{}
	}
	if err := f.Layers.Validate(); err != nil {
		return nil, err
	}
	return f.Layers, nil
}

// MappingSource yields the mapping table in effect right now.
type MappingSource interface {
	Current() Mapping
}

// MappingStore holds the current mapping and swaps it atomically.
//
// Thread Safety: Current and Set may be called from any goroutine. A
// Mapping returned by Current must not be mutated.
type MappingStore struct {
	current atomic.Pointer[Mapping]
}

// NewMappingStore returns a store holding m.
func NewMappingStore(m Mapping) *MappingStore {
	s := &MappingStore{}
	s.Set(m)
	return s
}

// Current returns the mapping in effect. Never nil.
func (s *MappingStore) Current() Mapping {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Mapping{}
}

// Set replaces the mapping in effect.
func (s *MappingStore) Set(m Mapping) {
	if m == nil {
		m = Mapping{}
	}
	s.current.Store(&m)
}

// StaticMapping adapts a fixed table to MappingSource.
type StaticMapping Mapping

// Current implements MappingSource.
func (m StaticMapping) Current() Mapping { return Mapping(m) }
