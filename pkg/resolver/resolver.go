// Package resolver picks the concrete Go type an inbound entity document is
// decoded into.
//
// A Registry holds resolvers attached to specific requested types and an
// ordered list of global resolvers. For a requested type it tries, in order:
// the resolver the type declares itself (Provider), resolvers attached with
// Attach, then global resolvers in registration order. The first capable
// resolver that returns a type wins. When none does, the requested type is
// used as-is.
package resolver

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Registry errors.
var (
	ErrNilResolver  = errors.New("resolver: nil resolver")
	ErrNilType      = errors.New("resolver: nil type")
	ErrAttached     = errors.New("resolver: type already has an attached resolver")
	ErrUnknownName  = errors.New("resolver: no type registered for name")
	ErrDuplicateKey = errors.New("resolver: name already registered")
)

// TypeResolver maps a decoded (id, type) pair onto a concrete Go type.
type TypeResolver interface {
	// CanResolve reports whether the resolver handles the requested type.
	CanResolve(requested reflect.Type) bool

	// Resolve returns the concrete type for an entity.
	Resolve(id, entityType string) (reflect.Type, error)
}

// Provider is implemented by types that declare their own resolver. The
// method is called on the zero value of the requested type.
type Provider interface {
	EntityResolver() TypeResolver
}

var providerType = reflect.TypeOf((*Provider)(nil)).Elem()

// Registry is the resolver chain owned by a client. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	attached map[reflect.Type]TypeResolver
	global   []TypeResolver

	// cache maps requested type to the resolver that last succeeded for it.
	cache sync.Map
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{attached: make(map[reflect.Type]TypeResolver)}
}

// Attach binds r to the requested type t. Only one resolver can be attached
// per type.
func (reg *Registry) Attach(t reflect.Type, r TypeResolver) error {
	if t == nil {
		return ErrNilType
	}
	if r == nil {
		return ErrNilResolver
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.attached[t]; exists {
		return fmt.Errorf("%w: %s", ErrAttached, t)
	}
	reg.attached[t] = r
	return nil
}

// Register appends a global resolver. Earlier registrations take priority.
func (reg *Registry) Register(r TypeResolver) error {
	if r == nil {
		return ErrNilResolver
	}
	reg.mu.Lock()
	reg.global = append(reg.global, r)
	reg.mu.Unlock()
	return nil
}

// Resolve returns the concrete type for an entity requested as t. Resolvers
// that report an error are skipped.
func (reg *Registry) Resolve(t reflect.Type, id, entityType string) reflect.Type {
	if t == nil {
		return nil
	}

	if cached, ok := reg.cache.Load(t); ok {
		if concrete, err := cached.(TypeResolver).Resolve(id, entityType); err == nil && concrete != nil {
			return concrete
		}
	}

	for _, r := range reg.candidates(t) {
		if !r.CanResolve(t) {
			continue
		}
		concrete, err := r.Resolve(id, entityType)
		if err != nil || concrete == nil {
			continue
		}
		reg.cache.Store(t, r)
		return concrete
	}
	return t
}

// candidates returns the resolvers to try for t, in priority order.
func (reg *Registry) candidates(t reflect.Type) []TypeResolver {
	var out []TypeResolver
	if p := declared(t); p != nil {
		out = append(out, p)
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if r, ok := reg.attached[t]; ok {
		out = append(out, r)
	}
	return append(out, reg.global...)
}

// declared returns the resolver a type provides for itself, if any.
func declared(t reflect.Type) TypeResolver {
	if t.Kind() == reflect.Interface {
		return nil
	}
	switch {
	case t.Implements(providerType):
		if t.Kind() == reflect.Pointer {
			return reflect.New(t.Elem()).Interface().(Provider).EntityResolver()
		}
		return reflect.Zero(t).Interface().(Provider).EntityResolver()
	case reflect.PointerTo(t).Implements(providerType):
		return reflect.New(t).Interface().(Provider).EntityResolver()
	}
	return nil
}

// Len returns the number of global resolvers.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.global)
}
