// Package mapper converts typed Go entities to and from wire documents.
//
// Serialize walks an entity's contract and wraps every attribute field into
// a {value, type} node, resolving the wire type name through the TypeMap
// unless the contract names one explicitly. Deserialize reverses the
// process: it resolves the concrete Go type through the resolver registry,
// lifts metadata into companion fields and projects bare values onto the
// struct.
//
// A Mapper is safe for concurrent use once constructed. It never mutates the
// entities passed to Serialize.
package mapper

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ngsi-go/ngsi/pkg/contract"
	"github.com/ngsi-go/ngsi/pkg/encoder"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/resolver"
	"github.com/ngsi-go/ngsi/pkg/typemap"
)

// Mapper errors.
var (
	ErrNilEntity          = errors.New("mapper: nil entity")
	ErrMissingIdentity    = errors.New("mapper: entity has no id or type value")
	ErrUnresolvedTypeName = errors.New("mapper: cannot resolve wire type name")
	ErrNotAssignable      = errors.New("mapper: concrete type not assignable to requested type")
	ErrInvalidTarget      = errors.New("mapper: target must be a non-nil pointer to a struct")
)

// TypeNameError reports an attribute whose value type has no TypeMap entry
// and no explicit wire type.
type TypeNameError struct {
	Attribute string
	Type      reflect.Type
}

func (e *TypeNameError) Error() string {
	return fmt.Sprintf("mapper: cannot resolve wire type name for attribute %q (%v)", e.Attribute, e.Type)
}

func (e *TypeNameError) Unwrap() error { return ErrUnresolvedTypeName }

var (
	dynamicEntityType = reflect.TypeOf(model.DynamicEntity{})
	attributeDataType = reflect.TypeOf(model.AttributeData{})
)

// Mapper converts entities using a fixed contract store, type map, resolver
// registry and encoder pair.
type Mapper struct {
	contracts *contract.Store
	types     *typemap.TypeMap
	resolvers *resolver.Registry
	fields    encoder.FieldEncoder
	values    encoder.ValueEncoder
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithContracts shares a contract store between mappers.
func WithContracts(s *contract.Store) Option {
	return func(m *Mapper) { m.contracts = s }
}

// WithResolvers sets the resolver registry used by Deserialize.
func WithResolvers(r *resolver.Registry) Option {
	return func(m *Mapper) { m.resolvers = r }
}

// WithEncoder sets both the field and the value encoder.
func WithEncoder(c encoder.Codec) Option {
	return func(m *Mapper) {
		m.fields = c
		m.values = c
	}
}

// WithFieldEncoder sets the field encoder.
func WithFieldEncoder(f encoder.FieldEncoder) Option {
	return func(m *Mapper) { m.fields = f }
}

// WithValueEncoder sets the value encoder.
func WithValueEncoder(v encoder.ValueEncoder) Option {
	return func(m *Mapper) { m.values = v }
}

// New creates a Mapper. A nil type map selects typemap.Basic().
func New(types *typemap.TypeMap, opts ...Option) *Mapper {
	if types == nil {
		types = typemap.Basic()
	}
	m := &Mapper{
		contracts: contract.NewStore(),
		types:     types,
		resolvers: resolver.NewRegistry(),
		fields:    encoder.Noop{},
		values:    encoder.Noop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Contracts returns the contract store.
func (m *Mapper) Contracts() *contract.Store { return m.contracts }

// Types returns the type map.
func (m *Mapper) Types() *typemap.TypeMap { return m.types }

// Resolvers returns the resolver registry.
func (m *Mapper) Resolvers() *resolver.Registry { return m.resolvers }

// DecodeField applies the field decoder.
func (m *Mapper) DecodeField(s string) string { return m.fields.DecodeField(s) }

// EncodeField applies the field encoder.
func (m *Mapper) EncodeField(s string) string { return m.fields.EncodeField(s) }
