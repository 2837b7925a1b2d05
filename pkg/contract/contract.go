// Package contract describes how a Go struct maps onto an entity document.
//
// An EntityContract lists, for one concrete struct type, where the entity id
// and type live, which fields are attributes (with their wire names and
// options) and which fields carry metadata for another attribute. Contracts
// depend only on the type's shape and are cached forever by a Store.
//
// Contracts are discovered from `ngsi` struct tags:
//
//	type Room struct {
//		ID          string          `ngsi:"id"`
//		Type        string          `ngsi:"type"`
//		Temperature float64         `ngsi:"temperature,wiretype=Number"`
//		TempMeta    model.Metadata  `ngsi:",metadata=temperature"`
//		Owner       string          `ngsi:"owner,noencode"`
//		Created     time.Time       `ngsi:"dateCreated,readonly"`
//		Location    model.AttributeData `ngsi:"location,raw"`
//		Scratch     string          `ngsi:"-"`
//	}
//
// or registered explicitly with a Descriptor, which bypasses tag discovery.
package contract

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ngsi-go/ngsi/pkg/model"
)

// Contract errors. All of them are returned wrapped in *Error.
var (
	ErrInvalidEntityType  = errors.New("not a valid entity type")
	ErrAmbiguousIdentity  = errors.New("more than one id or type member at the same depth")
	ErrDuplicateAttribute = errors.New("duplicate attribute wire name")
	ErrUnknownAttribute   = errors.New("metadata linked to unknown attribute")
	ErrUnknownField       = errors.New("unknown field")
	ErrAlreadyRegistered  = errors.New("contract already registered")
)

// Error is a contract build failure for a specific type.
type Error struct {
	Type reflect.Type
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("contract %v: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(t reflect.Type, err error) *Error {
	return &Error{Type: t, Err: err}
}

// TypeNamer lets an entity compute its type name at serialize time,
// overriding the value of its type field.
type TypeNamer interface {
	EntityType() string
}

var (
	typeNamerType     = reflect.TypeOf((*TypeNamer)(nil)).Elem()
	dynamicEntityType = reflect.TypeOf(model.DynamicEntity{})
	dynamicAttrsType  = reflect.TypeOf(map[string]model.AttributeData(nil))
)

// AttributeContract maps one struct field to one wire attribute.
type AttributeContract struct {
	// WireName is the attribute name before field encoding.
	WireName string

	// Field is the index path of the struct field.
	Field []int

	// FieldName is the Go field name, for diagnostics.
	FieldName string

	// FieldType is the static type of the field.
	FieldType reflect.Type

	// ExplicitType bypasses type-map lookup when non-empty.
	ExplicitType string

	// ReadOnly attributes are never serialized.
	ReadOnly bool

	// Raw attributes already hold the full {value,type,metadata} shape.
	Raw bool

	// SkipEncode disables value encoding for the attribute.
	SkipEncode bool
}

// MetadataLink maps a struct field onto another attribute's metadata.
type MetadataLink struct {
	Field     []int
	FieldName string
	FieldType reflect.Type

	// Attribute is the wire name of the linked attribute.
	Attribute string
}

// EntityContract is the cached mapping for one concrete struct type.
type EntityContract struct {
	Type       reflect.Type
	Attributes []AttributeContract
	Metadata   []MetadataLink

	// Dynamic marks model.DynamicEntity and types that embed it.
	Dynamic bool

	id        []int
	entType   []int
	typeNamer bool
	dynamic   []int
	byWire    map[string]int
}

// Attribute returns the attribute contract with the given wire name.
func (c *EntityContract) Attribute(wireName string) (AttributeContract, bool) {
	idx, ok := c.byWire[wireName]
	if !ok {
		return AttributeContract{}, false
	}
	return c.Attributes[idx], true
}

// ID returns the entity id held by v, a struct value of c.Type.
func (c *EntityContract) ID(v reflect.Value) string {
	return v.FieldByIndex(c.id).String()
}

// SetID stores id into v, which must be addressable.
func (c *EntityContract) SetID(v reflect.Value, id string) {
	v.FieldByIndex(c.id).SetString(id)
}

// EntityType returns the entity type of v. A TypeNamer implementation takes
// precedence over the type field.
func (c *EntityContract) EntityType(v reflect.Value) string {
	if c.typeNamer {
		if v.CanAddr() {
			if n, ok := v.Addr().Interface().(TypeNamer); ok {
				return n.EntityType()
			}
		}
		if n, ok := v.Interface().(TypeNamer); ok {
			return n.EntityType()
		}
	}
	return v.FieldByIndex(c.entType).String()
}

// SetEntityType stores the entity type into v, which must be addressable.
func (c *EntityContract) SetEntityType(v reflect.Value, typ string) {
	v.FieldByIndex(c.entType).SetString(typ)
}

// DynamicAttributes returns the attribute map of a dynamic entity, or nil.
func (c *EntityContract) DynamicAttributes(v reflect.Value) reflect.Value {
	if !c.Dynamic {
		return reflect.Value{}
	}
	return v.FieldByIndex(c.dynamic)
}

// finish validates the contract and builds its indexes.
func (c *EntityContract) finish() error {
	if c.id == nil || c.entType == nil {
		return ErrInvalidEntityType
	}
	for _, path := range [][]int{c.id, c.entType} {
		if k := c.Type.FieldByIndex(path).Type.Kind(); k != reflect.String {
			return fmt.Errorf("%w: id and type must be strings, got %s", ErrInvalidEntityType, k)
		}
	}

	c.byWire = make(map[string]int, len(c.Attributes))
	for i, a := range c.Attributes {
		if _, dup := c.byWire[a.WireName]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAttribute, a.WireName)
		}
		c.byWire[a.WireName] = i
	}
	for _, m := range c.Metadata {
		if _, ok := c.byWire[m.Attribute]; !ok {
			return fmt.Errorf("%w: %s -> %q", ErrUnknownAttribute, m.FieldName, m.Attribute)
		}
	}

	c.typeNamer = c.Type.Implements(typeNamerType) || reflect.PointerTo(c.Type).Implements(typeNamerType)

	if f, ok := c.Type.FieldByName("Attributes"); ok && f.Type == dynamicAttrsType {
		if c.Type == dynamicEntityType || (len(f.Index) > 1 && c.Type.FieldByIndex(f.Index[:len(f.Index)-1]).Type == dynamicEntityType) {
			c.Dynamic = true
			c.dynamic = f.Index
		}
	}
	return nil
}
