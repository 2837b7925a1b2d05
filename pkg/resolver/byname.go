package resolver

import (
	"fmt"
	"reflect"
	"sync"
)

// ByTypeName resolves entities by their wire type name. It handles any
// requested type that at least one registered concrete type can be
// assigned to, which makes it the natural resolver for interface-typed
// subscriptions.
type ByTypeName struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewByTypeName creates an empty name resolver.
func NewByTypeName() *ByTypeName {
	return &ByTypeName{types: make(map[string]reflect.Type)}
}

// Add maps an entity type name to a concrete Go type. Pointer types are
// stored through their element type.
func (b *ByTypeName) Add(entityType string, t reflect.Type) error {
	if t == nil {
		return ErrNilType
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.types[entityType]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, entityType)
	}
	b.types[entityType] = t
	return nil
}

// CanResolve implements TypeResolver.
func (b *ByTypeName) CanResolve(requested reflect.Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.types {
		if assignable(t, requested) {
			return true
		}
	}
	return false
}

// Resolve implements TypeResolver.
func (b *ByTypeName) Resolve(_, entityType string) (reflect.Type, error) {
	b.mu.RLock()
	t, ok := b.types[entityType]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, entityType)
	}
	return t, nil
}

// assignable reports whether a value of concrete type t, or a pointer to
// one, can be returned where requested is expected.
func assignable(t, requested reflect.Type) bool {
	if t.AssignableTo(requested) || reflect.PointerTo(t).AssignableTo(requested) {
		return true
	}
	return requested.Kind() == reflect.Pointer && t == requested.Elem()
}

// Func adapts a pair of functions to TypeResolver.
type Func struct {
	Can func(requested reflect.Type) bool
	Fn  func(id, entityType string) (reflect.Type, error)
}

// CanResolve implements TypeResolver. A nil Can accepts every type.
func (f Func) CanResolve(requested reflect.Type) bool {
	if f.Can == nil {
		return true
	}
	return f.Can(requested)
}

// Resolve implements TypeResolver.
func (f Func) Resolve(id, entityType string) (reflect.Type, error) {
	return f.Fn(id, entityType)
}
