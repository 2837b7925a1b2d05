package mapper

import (
	"reflect"

	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/value"
)

// AttributeValues reads the named attributes off an entity. Names are wire
// names after field decoding. Names the entity does not carry are left out.
// Dynamic attributes are returned as their plain Go values.
func (m *Mapper) AttributeValues(entity any, names []string) (map[string]any, error) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, ErrNilEntity
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, ErrNilEntity
	}
	c, err := m.contracts.GetOrCreate(rv.Type())
	if err != nil {
		return nil, err
	}

	var dynamic map[string]model.AttributeData
	if attrs := c.DynamicAttributes(rv); attrs.IsValid() && !attrs.IsNil() {
		dynamic = attrs.Interface().(map[string]model.AttributeData)
	}

	out := make(map[string]any, len(names))
	for _, name := range names {
		if a, ok := c.Attribute(name); ok {
			fv := rv.FieldByIndex(a.Field)
			if fv.Type() == containerType {
				out[name] = fv.Interface().(value.Container).Interface()
				continue
			}
			out[name] = fv.Interface()
			continue
		}
		if attr, ok := dynamic[name]; ok {
			out[name] = attr.Value.Interface()
		}
	}
	return out, nil
}
