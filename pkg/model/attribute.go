package model

import (
	"encoding/json"

	"github.com/ngsi-go/ngsi/pkg/value"
)

// Well-known wire keys.
const (
	KeyID       = "id"
	KeyType     = "type"
	KeyValue    = "value"
	KeyMetadata = "metadata"
)

// AttributeData is a single attribute in its full wire shape.
type AttributeData struct {
	// Value is the attribute payload.
	Value value.Container `json:"value"`

	// Type is the wire type name. Empty lets the mapper resolve it from the
	// value's runtime type.
	Type string `json:"type,omitempty"`

	// Metadata holds the attribute's metadata items.
	Metadata Metadata `json:"metadata,omitempty"`
}

// NewAttribute creates an attribute with a native value and no explicit type.
func NewAttribute(v any) AttributeData {
	return AttributeData{Value: value.Of(v)}
}

// NewTypedAttribute creates an attribute with an explicit wire type name.
func NewTypedAttribute(v any, typeName string) AttributeData {
	return AttributeData{Value: value.Of(v), Type: typeName}
}

// WithMetadata returns a copy of the attribute with an added metadata item.
func (a AttributeData) WithMetadata(name string, v any, typeName string) AttributeData {
	md := a.Metadata.Clone()
	md.Set(name, MetadataItem{Value: value.Of(v), Type: typeName})
	a.Metadata = md
	return a
}

// MarshalJSON writes {"value":…,"type":…,"metadata":{…}}; metadata is
// omitted when empty.
func (a AttributeData) MarshalJSON() ([]byte, error) {
	out := struct {
		Value    value.Container `json:"value"`
		Type     string          `json:"type,omitempty"`
		Metadata *Metadata       `json:"metadata,omitempty"`
	}{Value: a.Value, Type: a.Type}
	if a.Metadata.Len() > 0 {
		out.Metadata = &a.Metadata
	}
	return json.Marshal(out)
}

// MetadataItem is a single typed metadata entry.
type MetadataItem struct {
	Value value.Container `json:"value"`
	Type  string          `json:"type"`
}
