package contract

import (
	"fmt"
	"reflect"
	"sync"
)

// Store caches contracts per concrete struct type. It is safe for
// concurrent use; concurrent first callers for the same type may both build
// a contract, but all of them observe the one that was stored first.
type Store struct {
	contracts sync.Map // reflect.Type -> *EntityContract
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// GetOrCreate returns the contract for t, discovering it from struct tags on
// first use. Pointer types are looked up through their element type.
func (s *Store) GetOrCreate(t reflect.Type) (*EntityContract, error) {
	if t == nil {
		return nil, newError(t, ErrInvalidEntityType)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if c, ok := s.contracts.Load(t); ok {
		return c.(*EntityContract), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, newError(t, fmt.Errorf("%w: %s is not a struct", ErrInvalidEntityType, t.Kind()))
	}

	c, err := discover(t)
	if err != nil {
		return nil, newError(t, err)
	}
	if err := c.finish(); err != nil {
		return nil, newError(t, err)
	}

	actual, _ := s.contracts.LoadOrStore(t, c)
	return actual.(*EntityContract), nil
}

// For returns the contract for T.
func For[T any](s *Store) (*EntityContract, error) {
	return s.GetOrCreate(reflect.TypeOf((*T)(nil)).Elem())
}

// Descriptor declares a contract explicitly. Fields are named by their Go
// field name; promoted fields of embedded structs may be used directly.
type Descriptor struct {
	ID         string
	Type       string
	Attributes []AttributeDescriptor
	Metadata   []MetadataDescriptor
}

// AttributeDescriptor declares one attribute.
type AttributeDescriptor struct {
	Field      string
	Name       string
	WireType   string
	ReadOnly   bool
	Raw        bool
	SkipEncode bool
}

// MetadataDescriptor declares one metadata companion.
type MetadataDescriptor struct {
	Field     string
	Attribute string
}

// Register installs an explicit contract for t, bypassing tag discovery.
// It fails if a contract for t already exists.
func (s *Store) Register(t reflect.Type, d Descriptor) error {
	if t == nil {
		return newError(t, ErrInvalidEntityType)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return newError(t, fmt.Errorf("%w: %s is not a struct", ErrInvalidEntityType, t.Kind()))
	}

	c, err := fromDescriptor(t, d)
	if err != nil {
		return newError(t, err)
	}
	if err := c.finish(); err != nil {
		return newError(t, err)
	}
	if _, loaded := s.contracts.LoadOrStore(t, c); loaded {
		return newError(t, ErrAlreadyRegistered)
	}
	return nil
}

func fromDescriptor(t reflect.Type, d Descriptor) (*EntityContract, error) {
	lookup := func(name string) (reflect.StructField, error) {
		f, ok := t.FieldByName(name)
		if !ok || !f.IsExported() {
			return f, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		return f, nil
	}

	c := &EntityContract{Type: t}
	if d.ID == "" || d.Type == "" {
		return nil, ErrInvalidEntityType
	}
	idField, err := lookup(d.ID)
	if err != nil {
		return nil, err
	}
	typeField, err := lookup(d.Type)
	if err != nil {
		return nil, err
	}
	c.id, c.entType = idField.Index, typeField.Index

	for _, a := range d.Attributes {
		f, err := lookup(a.Field)
		if err != nil {
			return nil, err
		}
		name := a.Name
		if name == "" {
			name = f.Name
		}
		c.Attributes = append(c.Attributes, AttributeContract{
			WireName:     name,
			Field:        f.Index,
			FieldName:    f.Name,
			FieldType:    f.Type,
			ExplicitType: a.WireType,
			ReadOnly:     a.ReadOnly,
			Raw:          a.Raw,
			SkipEncode:   a.SkipEncode,
		})
	}
	for _, m := range d.Metadata {
		f, err := lookup(m.Field)
		if err != nil {
			return nil, err
		}
		c.Metadata = append(c.Metadata, MetadataLink{
			Field:     f.Index,
			FieldName: f.Name,
			FieldType: f.Type,
			Attribute: m.Attribute,
		})
	}
	return c, nil
}
