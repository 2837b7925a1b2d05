package model

import (
	"sort"

	"github.com/ngsi-go/ngsi/pkg/value"
)

// DynamicEntity is the schema-less entity representation. The mapper
// recognizes it specially: every attribute lives in Attributes instead of a
// struct field.
type DynamicEntity struct {
	ID         string                   `ngsi:"id"`
	Type       string                   `ngsi:"type"`
	Attributes map[string]AttributeData `ngsi:"-"`
}

// NewDynamicEntity creates an empty dynamic entity.
func NewDynamicEntity(id, entityType string) *DynamicEntity {
	return &DynamicEntity{
		ID:         id,
		Type:       entityType,
		Attributes: make(map[string]AttributeData),
	}
}

// Set stores an attribute, replacing any previous one with the same name.
func (e *DynamicEntity) Set(name string, attr AttributeData) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]AttributeData)
	}
	e.Attributes[name] = attr
}

// SetValue stores a native value with no explicit type.
func (e *DynamicEntity) SetValue(name string, v any) {
	e.Set(name, AttributeData{Value: value.Of(v)})
}

// Get returns the attribute stored under name.
func (e *DynamicEntity) Get(name string) (AttributeData, bool) {
	attr, ok := e.Attributes[name]
	return attr, ok
}

// AttributeNames returns attribute names sorted alphabetically.
func (e *DynamicEntity) AttributeNames() []string {
	names := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
