package mapper

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ngsi-go/ngsi/pkg/contract"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/value"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

// Deserialize decodes doc into a new entity returned as T. T may be a
// struct type, a pointer to one, or an interface implemented by the
// resolved concrete type. Attributes missing from doc leave their fields at
// the zero value.
func Deserialize[T any](m *Mapper, doc wire.Document) (T, error) {
	var zero T
	out, err := m.DeserializeType(doc, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	v, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrNotAssignable, out)
	}
	return v, nil
}

// DeserializeType decodes doc into a new entity of the concrete type
// resolved for requested. The result is a pointer when requested is a
// pointer or an interface implemented through pointer methods, and a value
// otherwise.
func (m *Mapper) DeserializeType(doc wire.Document, requested reflect.Type) (any, error) {
	ptr, err := m.materialize(doc, requested)
	if err != nil {
		return nil, err
	}
	concrete := ptr.Elem().Type()
	switch {
	case ptr.Type().AssignableTo(requested):
		return ptr.Interface(), nil
	case concrete.AssignableTo(requested):
		return ptr.Elem().Interface(), nil
	}
	return nil, fmt.Errorf("%w: %v to %v", ErrNotAssignable, concrete, requested)
}

// Materialize decodes doc into a newly allocated entity of the concrete
// type resolved for requested and returns a pointer to it. Unlike
// DeserializeType it does not check assignability to requested.
func (m *Mapper) Materialize(doc wire.Document, requested reflect.Type) (any, error) {
	ptr, err := m.materialize(doc, requested)
	if err != nil {
		return nil, err
	}
	return ptr.Interface(), nil
}

func (m *Mapper) materialize(doc wire.Document, requested reflect.Type) (reflect.Value, error) {
	if requested == nil {
		return reflect.Value{}, ErrInvalidTarget
	}
	id, typ, err := m.Identity(doc)
	if err != nil {
		return reflect.Value{}, err
	}

	concrete := m.resolvers.Resolve(requested, id, typ)
	for concrete.Kind() == reflect.Pointer {
		concrete = concrete.Elem()
	}
	if concrete.Kind() == reflect.Interface {
		if !reflect.PointerTo(dynamicEntityType).Implements(concrete) {
			return reflect.Value{}, fmt.Errorf("%w: no concrete type for %v (type %q)", ErrNotAssignable, requested, typ)
		}
		concrete = dynamicEntityType
	}

	c, err := m.contracts.GetOrCreate(concrete)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(concrete)
	if err := m.populate(doc, ptr.Elem(), c, id, typ); err != nil {
		return reflect.Value{}, err
	}
	return ptr, nil
}

// DeserializeInto merges doc into an existing entity. target must be a
// non-nil pointer to a struct. Members absent from doc keep their current
// values, so successive partial updates accumulate.
func (m *Mapper) DeserializeInto(doc wire.Document, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}
	id, typ, err := m.Identity(doc)
	if err != nil {
		return err
	}
	c, err := m.contracts.GetOrCreate(rv.Elem().Type())
	if err != nil {
		return err
	}
	return m.populate(doc, rv.Elem(), c, id, typ)
}

// Identity returns the field-decoded id and type of doc. Both may be empty.
func (m *Mapper) Identity(doc wire.Document) (string, string, error) {
	id, _, err := doc.GetString(wire.KeyID)
	if err != nil {
		return "", "", err
	}
	typ, _, err := doc.GetString(wire.KeyType)
	if err != nil {
		return "", "", err
	}
	return m.fields.DecodeField(id), m.fields.DecodeField(typ), nil
}

// populate projects doc onto target, an addressable struct value.
func (m *Mapper) populate(doc wire.Document, target reflect.Value, c *contract.EntityContract, id, typ string) error {
	if id != "" {
		c.SetID(target, id)
	}
	if typ != "" {
		c.SetEntityType(target, typ)
	}

	for _, link := range c.Metadata {
		node, ok, err := doc.Node(m.fields.EncodeField(link.Attribute))
		if err != nil {
			return err
		}
		if !ok || node.Metadata() == nil {
			continue
		}
		field := target.FieldByIndex(link.Field)
		if err := json.Unmarshal(node.Metadata(), field.Addr().Interface()); err != nil {
			return fmt.Errorf("mapper: metadata for %q: %w", link.Attribute, err)
		}
	}

	known := make(map[string]bool, len(c.Attributes))
	for _, a := range c.Attributes {
		key := m.fields.EncodeField(a.WireName)
		known[key] = true
		raw, ok := doc[key]
		if !ok {
			continue
		}
		field := target.FieldByIndex(a.Field)
		var err error
		if a.Raw {
			err = m.decodeRaw(raw, field, a.SkipEncode)
		} else {
			err = m.decodeBare(raw, field, a.SkipEncode)
		}
		if err != nil {
			return fmt.Errorf("mapper: attribute %q: %w", a.WireName, err)
		}
	}

	if c.Dynamic {
		return m.decodeDynamic(doc, c.DynamicAttributes(target), known)
	}
	return nil
}

// decodeBare stores only the node's value into field.
func (m *Mapper) decodeBare(raw json.RawMessage, field reflect.Value, skipDecode bool) error {
	node, err := wire.ParseNode(raw)
	if err != nil {
		return err
	}
	v := raw
	if node.HasValue() {
		v = node.Value()
	}
	if !skipDecode {
		v = m.decodeStringValue(v)
	}
	if field.Type() == containerType {
		field.Set(reflect.ValueOf(value.FromRaw(v)))
		return nil
	}
	return value.FromRaw(v).To(field.Addr().Interface())
}

// decodeRaw stores the whole node into field after value-decoding its
// nested value.
func (m *Mapper) decodeRaw(raw json.RawMessage, field reflect.Value, skipDecode bool) error {
	node, err := wire.ParseNode(raw)
	if err != nil {
		return err
	}
	if !skipDecode && node.HasValue() {
		node[wire.KeyValue] = m.decodeStringValue(node.Value())
	}
	if t := node.Type(); t != "" {
		node[wire.KeyType] = wire.String(m.fields.DecodeField(t))
	}
	data, err := node.Marshal()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, field.Addr().Interface())
}

// decodeDynamic turns every unrecognized top-level key into a dynamic
// attribute.
func (m *Mapper) decodeDynamic(doc wire.Document, attrs reflect.Value, known map[string]bool) error {
	if !attrs.IsValid() {
		return nil
	}
	if attrs.IsNil() {
		attrs.Set(reflect.MakeMap(attrs.Type()))
	}
	entries := attrs.Interface().(map[string]model.AttributeData)

	for _, key := range doc.Attributes() {
		if known[key] {
			continue
		}
		node, err := wire.ParseNode(doc[key])
		if err != nil {
			return fmt.Errorf("mapper: attribute %q: %w", key, err)
		}
		v := doc[key]
		if node.HasValue() {
			v = node.Value()
		}
		attr := model.AttributeData{
			Value:    value.FromRaw(m.decodeStringValue(v)),
			Type:     m.fields.DecodeField(node.Type()),
			Metadata: model.NewMetadata(),
		}
		if md := node.Metadata(); md != nil {
			if err := json.Unmarshal(md, &attr.Metadata); err != nil {
				return fmt.Errorf("mapper: attribute %q metadata: %w", key, err)
			}
		}
		entries[m.fields.DecodeField(key)] = attr
	}
	return nil
}

// decodeStringValue value-decodes a JSON string token. Anything else is
// returned unchanged.
func (m *Mapper) decodeStringValue(raw json.RawMessage) json.RawMessage {
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		return raw
	}
	return wire.String(m.values.DecodeValue(s))
}
