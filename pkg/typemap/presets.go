package typemap

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngsi-go/ngsi/pkg/model"
)

// Wire type names used by the presets.
const (
	NameNumber     = "Number"
	NameBoolean    = "Boolean"
	NameText       = "Text"
	NameURL        = "URL"
	NameDateTime   = "DateTime"
	NameDuration   = "Duration"
	NameGUID       = "Guid"
	NameArray      = "Array"
	NameStructured = "StructuredValue"
	NameGeoPoint   = "geo:point"
	NameGeoLine    = "geo:line"
	NameGeoPolygon = "geo:polygon"
	NameGeoBox     = "geo:box"
)

// Preset names accepted by Preset.
const (
	PresetBasic    = "basic"
	PresetExpanded = "expanded"
	PresetEmpty    = "empty"
)

// Basic returns the map that collapses every numeric kind into "Number".
// Defined numeric types (enums) resolve to "Number" through their
// underlying type. The last entry maps any value to "StructuredValue".
func Basic() *TypeMap {
	m := New()
	mustAdd(m,
		Entry{TypeOf[bool](), NameBoolean},
		Entry{TypeOf[int](), NameNumber},
		Entry{TypeOf[int8](), NameNumber},
		Entry{TypeOf[int16](), NameNumber},
		Entry{TypeOf[int32](), NameNumber},
		Entry{TypeOf[int64](), NameNumber},
		Entry{TypeOf[uint](), NameNumber},
		Entry{TypeOf[uint8](), NameNumber},
		Entry{TypeOf[uint16](), NameNumber},
		Entry{TypeOf[uint32](), NameNumber},
		Entry{TypeOf[uint64](), NameNumber},
		Entry{TypeOf[float32](), NameNumber},
		Entry{TypeOf[float64](), NameNumber},
		Entry{TypeOf[json.Number](), NameNumber},
		Entry{TypeOf[string](), NameText},
		Entry{TypeOf[url.URL](), NameText},
		Entry{TypeOf[time.Time](), NameDateTime},
		Entry{TypeOf[any](), NameStructured},
	)
	return m
}

// Expanded returns the map with one wire name per numeric width plus
// duration, GUID, geo and array names. The last entry maps any value to
// "StructuredValue".
func Expanded() *TypeMap {
	m := New()
	mustAdd(m,
		Entry{TypeOf[bool](), NameBoolean},
		Entry{TypeOf[int8](), "Int8"},
		Entry{TypeOf[int16](), "Int16"},
		Entry{TypeOf[int32](), "Int32"},
		Entry{TypeOf[int64](), "Int64"},
		Entry{TypeOf[int](), "Int64"},
		Entry{TypeOf[uint8](), "UInt8"},
		Entry{TypeOf[uint16](), "UInt16"},
		Entry{TypeOf[uint32](), "UInt32"},
		Entry{TypeOf[uint64](), "UInt64"},
		Entry{TypeOf[uint](), "UInt64"},
		Entry{TypeOf[float32](), "Float"},
		Entry{TypeOf[float64](), "Double"},
		Entry{TypeOf[json.Number](), "Decimal"},
		Entry{TypeOf[time.Duration](), NameDuration},
		Entry{TypeOf[string](), NameText},
		Entry{TypeOf[url.URL](), NameURL},
		Entry{TypeOf[time.Time](), NameDateTime},
		Entry{TypeOf[uuid.UUID](), NameGUID},
		Entry{TypeOf[model.GeoPoint](), NameGeoPoint},
		Entry{TypeOf[model.GeoLine](), NameGeoLine},
		Entry{TypeOf[model.GeoPolygon](), NameGeoPolygon},
		Entry{TypeOf[model.GeoBox](), NameGeoBox},
		Entry{TypeOf[[]any](), NameArray},
		Entry{TypeOf[any](), NameStructured},
	)
	return m
}

func mustAdd(m *TypeMap, entries ...Entry) {
	for _, e := range entries {
		if err := m.Add(e.Type, e.Name); err != nil {
			panic(fmt.Sprintf("typemap preset: %v", err))
		}
	}
}

// Preset returns a fresh map for a preset name.
func Preset(name string) (*TypeMap, error) {
	switch strings.ToLower(name) {
	case "", PresetBasic:
		return Basic(), nil
	case PresetExpanded:
		return Expanded(), nil
	case PresetEmpty:
		return New(), nil
	default:
		return nil, fmt.Errorf("typemap: unknown preset %q", name)
	}
}

// knownTypes names the types that can be referenced from configuration.
var knownTypes = map[string]reflect.Type{
	"bool":          TypeOf[bool](),
	"int":           TypeOf[int](),
	"int8":          TypeOf[int8](),
	"int16":         TypeOf[int16](),
	"int32":         TypeOf[int32](),
	"int64":         TypeOf[int64](),
	"uint":          TypeOf[uint](),
	"uint8":         TypeOf[uint8](),
	"uint16":        TypeOf[uint16](),
	"uint32":        TypeOf[uint32](),
	"uint64":        TypeOf[uint64](),
	"float32":       TypeOf[float32](),
	"float64":       TypeOf[float64](),
	"string":        TypeOf[string](),
	"any":           TypeOf[any](),
	"[]any":         TypeOf[[]any](),
	"json.Number":   TypeOf[json.Number](),
	"url.URL":       TypeOf[url.URL](),
	"time.Time":     TypeOf[time.Time](),
	"time.Duration": TypeOf[time.Duration](),
	"uuid.UUID":     TypeOf[uuid.UUID](),
	"geo.Point":     TypeOf[model.GeoPoint](),
	"geo.Line":      TypeOf[model.GeoLine](),
	"geo.Polygon":   TypeOf[model.GeoPolygon](),
	"geo.Box":       TypeOf[model.GeoBox](),
}

// LookupType returns the Go type registered for a configuration type name.
func LookupType(name string) (reflect.Type, bool) {
	t, ok := knownTypes[name]
	return t, ok
}

// Override customizes a preset. At most one of Before and After may be set;
// with neither, the mapping replaces an existing one in place or is appended.
type Override struct {
	Type   string
	Name   string
	Before string
	After  string
}

// Build creates a map from a preset and an ordered list of overrides.
func Build(preset string, exactMatch bool, overrides []Override) (*TypeMap, error) {
	m, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	m.ExactMatch = exactMatch

	for _, o := range overrides {
		if o.Name == "" {
			return nil, fmt.Errorf("%w: override for %s", ErrEmptyName, o.Type)
		}
		t, ok := LookupType(o.Type)
		if !ok {
			return nil, fmt.Errorf("typemap: unknown type %q", o.Type)
		}
		if o.Before != "" && o.After != "" {
			return nil, fmt.Errorf("typemap: override for %s sets both before and after", o.Type)
		}

		anchorName := o.Before + o.After
		if anchorName == "" {
			if idx := m.indexOf(t); idx >= 0 {
				m.entries[idx].Name = o.Name
				m.exact[t] = o.Name
				continue
			}
			if err := m.Add(t, o.Name); err != nil {
				return nil, err
			}
			continue
		}

		anchor, ok := LookupType(anchorName)
		if !ok {
			return nil, fmt.Errorf("typemap: unknown anchor type %q", anchorName)
		}
		m.Remove(t)
		if o.Before != "" {
			err = m.InsertBefore(anchor, t, o.Name)
		} else {
			err = m.InsertAfter(anchor, t, o.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}
