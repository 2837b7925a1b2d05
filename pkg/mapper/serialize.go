package mapper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"

	"github.com/ngsi-go/ngsi/pkg/contract"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/value"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

var (
	urlType       = reflect.TypeOf(url.URL{})
	containerType = reflect.TypeOf(value.Container{})
	numberType    = reflect.TypeOf(json.Number(""))
)

// Serialize converts an entity into a wire document.
func (m *Mapper) Serialize(entity any) (wire.Document, error) {
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

	id, typ := c.ID(rv), c.EntityType(rv)
	if id == "" || typ == "" {
		return nil, fmt.Errorf("%w: %v (id=%q type=%q)", ErrMissingIdentity, rv.Type(), id, typ)
	}

	doc := wire.Document{}
	doc.SetString(wire.KeyID, m.fields.EncodeField(id))
	doc.SetString(wire.KeyType, m.fields.EncodeField(typ))

	for _, a := range c.Attributes {
		if a.ReadOnly {
			continue
		}
		fv := rv.FieldByIndex(a.Field)
		if absent(fv) {
			continue
		}
		node, err := m.encodeAttribute(a, fv)
		if err != nil {
			return nil, err
		}
		if err := doc.SetNode(m.fields.EncodeField(a.WireName), node); err != nil {
			return nil, err
		}
	}

	if err := m.attachMetadata(doc, c, rv); err != nil {
		return nil, err
	}

	if c.Dynamic {
		if err := m.encodeDynamic(doc, c.DynamicAttributes(rv)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// absent reports whether a field holds no value to send.
func absent(fv reflect.Value) bool {
	switch fv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if fv.IsNil() {
			return true
		}
	}
	switch fv.Type() {
	case containerType:
		return fv.Interface().(value.Container).IsNull()
	case attributeDataType:
		attr := fv.Interface().(model.AttributeData)
		return attr.Value.IsNull() && attr.Type == "" && attr.Metadata.Len() == 0
	}
	return false
}

func (m *Mapper) encodeAttribute(a contract.AttributeContract, fv reflect.Value) (wire.Node, error) {
	if a.Raw {
		return m.encodeRaw(a, fv)
	}

	typeName := a.ExplicitType
	if typeName == "" {
		t := dynamicType(fv)
		name, ok := m.types.FindBestMatch(t)
		if !ok {
			return nil, &TypeNameError{Attribute: a.WireName, Type: t}
		}
		typeName = name
	}

	raw, err := marshalField(fv)
	if err != nil {
		return nil, fmt.Errorf("mapper: attribute %q: %w", a.WireName, err)
	}
	if !a.SkipEncode && stringish(fv) {
		raw = m.encodeStringValue(raw)
	}
	return wire.NewNode(raw, m.fields.EncodeField(typeName)), nil
}

// encodeRaw serializes a field that already has the attribute shape.
func (m *Mapper) encodeRaw(a contract.AttributeContract, fv reflect.Value) (wire.Node, error) {
	if fv.Type() == attributeDataType {
		return m.encodeData(a.WireName, fv.Interface().(model.AttributeData), a.SkipEncode)
	}

	raw, err := json.Marshal(fv.Interface())
	if err != nil {
		return nil, fmt.Errorf("mapper: attribute %q: %w", a.WireName, err)
	}
	node, err := wire.ParseNode(raw)
	if err != nil {
		return nil, fmt.Errorf("mapper: attribute %q: %w", a.WireName, err)
	}
	if !a.SkipEncode {
		if _, ok := node.StringValue(); ok {
			node[wire.KeyValue] = m.encodeStringValue(node.Value())
		}
	}
	return node, nil
}

// encodeData serializes an AttributeData, resolving an empty type name from
// the held value.
func (m *Mapper) encodeData(name string, attr model.AttributeData, skipEncode bool) (wire.Node, error) {
	typeName := attr.Type
	if typeName == "" {
		t := attr.Value.Type()
		resolved, ok := m.types.FindBestMatch(t)
		if !ok {
			return nil, &TypeNameError{Attribute: name, Type: t}
		}
		typeName = resolved
	}

	raw, err := attr.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("mapper: attribute %q: %w", name, err)
	}
	if !skipEncode && containerIsString(attr.Value) {
		raw = m.encodeStringValue(raw)
	}

	node := wire.NewNode(raw, m.fields.EncodeField(typeName))
	if attr.Metadata.Len() > 0 {
		md, err := json.Marshal(attr.Metadata)
		if err != nil {
			return nil, fmt.Errorf("mapper: attribute %q metadata: %w", name, err)
		}
		node[wire.KeyMetadata] = md
	}
	return node, nil
}

// attachMetadata moves companion fields under their attribute's metadata key.
// Metadata is never encoded.
func (m *Mapper) attachMetadata(doc wire.Document, c *contract.EntityContract, rv reflect.Value) error {
	for _, link := range c.Metadata {
		fv := rv.FieldByIndex(link.Field)
		if emptyMetadata(fv) {
			continue
		}
		key := m.fields.EncodeField(link.Attribute)
		node, ok, err := doc.Node(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		md, err := json.Marshal(fv.Interface())
		if err != nil {
			return fmt.Errorf("mapper: metadata for %q: %w", link.Attribute, err)
		}
		node[wire.KeyMetadata] = md
		if err := doc.SetNode(key, node); err != nil {
			return err
		}
	}
	return nil
}

func emptyMetadata(fv reflect.Value) bool {
	if absent(fv) || fv.IsZero() {
		return true
	}
	if l, ok := fv.Interface().(interface{ Len() int }); ok {
		return l.Len() == 0
	}
	if fv.Kind() == reflect.Map {
		return fv.Len() == 0
	}
	return false
}

// encodeDynamic promotes every entry of a dynamic entity's attribute map.
// Keys already written from struct fields are left alone.
func (m *Mapper) encodeDynamic(doc wire.Document, attrs reflect.Value) error {
	if !attrs.IsValid() || attrs.Len() == 0 {
		return nil
	}
	entries := attrs.Interface().(map[string]model.AttributeData)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		attr := entries[name]
		if attr.Value.IsNull() && attr.Type == "" {
			continue
		}
		key := m.fields.EncodeField(name)
		if _, exists := doc[key]; exists {
			continue
		}
		node, err := m.encodeData(name, attr, false)
		if err != nil {
			return err
		}
		if err := doc.SetNode(key, node); err != nil {
			return err
		}
	}
	return nil
}

// encodeStringValue value-encodes a JSON string token. Anything else is
// returned unchanged.
func (m *Mapper) encodeStringValue(raw json.RawMessage) json.RawMessage {
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		return raw
	}
	return wire.String(m.values.EncodeValue(s))
}

// marshalField encodes a bare attribute value. URLs are written as strings.
func marshalField(fv reflect.Value) (json.RawMessage, error) {
	inner := fv
	for inner.Kind() == reflect.Pointer || inner.Kind() == reflect.Interface {
		inner = inner.Elem()
	}
	if inner.Type() == urlType {
		return value.Of(inner.Interface()).MarshalJSON()
	}
	return json.Marshal(fv.Interface())
}

// dynamicType returns the runtime type of the value held by a field.
func dynamicType(fv reflect.Value) reflect.Type {
	for fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	if fv.Type() == containerType {
		return fv.Interface().(value.Container).Type()
	}
	return fv.Type()
}

// stringish reports whether a field holds a string or URL value.
func stringish(fv reflect.Value) bool {
	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return false
		}
		fv = fv.Elem()
	}
	switch fv.Type() {
	case urlType:
		return true
	case numberType:
		return false
	case containerType:
		return containerIsString(fv.Interface().(value.Container))
	}
	return fv.Kind() == reflect.String
}

func containerIsString(c value.Container) bool {
	switch c.Kind() {
	case value.KindString:
		return true
	case value.KindRaw:
		raw := c.Raw()
		return len(raw) > 0 && raw[0] == '"'
	}
	return false
}
