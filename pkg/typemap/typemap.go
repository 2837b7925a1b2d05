// Package typemap maps Go runtime types to broker wire type names.
//
// A TypeMap is an ordered list of (type, name) pairs plus an exact-match
// index. Lookup first tries an exact match; unless ExactMatch is set it then
// scans the list in insertion order and returns the first entry the query
// type derives from. Order, not specificity, decides: register narrow types
// before broad ones.
//
// A Go type T "derives from" entry type E when:
//   - E is an interface and T implements it (so `any` matches everything),
//   - T is a struct embedding E, directly or through nested embeddings,
//   - T is a defined type whose underlying type is E (type Level int -> int),
//   - E is []any and T is any slice or array.
//
// TypeMaps are not safe for concurrent mutation. Build one, customize it,
// then share it read-only.
package typemap

import (
	"errors"
	"fmt"
	"reflect"
)

// TypeMap errors.
var (
	ErrNilType        = errors.New("typemap: nil type")
	ErrEmptyName      = errors.New("typemap: empty wire name")
	ErrDuplicateType  = errors.New("typemap: type already registered")
	ErrAnchorNotFound = errors.New("typemap: anchor type not registered")
)

var anySliceType = reflect.TypeOf([]any(nil))

// Entry is one (type, wire name) pair.
type Entry struct {
	Type reflect.Type
	Name string
}

// TypeMap is an ordered registry of Go types to wire type names.
type TypeMap struct {
	// ExactMatch disables the inheritance scan.
	ExactMatch bool

	entries []Entry
	exact   map[reflect.Type]string
}

// New creates an empty TypeMap.
func New() *TypeMap {
	return &TypeMap{exact: make(map[reflect.Type]string)}
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (m *TypeMap) validate(t reflect.Type, name string) error {
	if t == nil {
		return ErrNilType
	}
	if name == "" {
		return ErrEmptyName
	}
	if _, exists := m.exact[t]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t)
	}
	return nil
}

// Add appends a mapping at the end of the scan order.
func (m *TypeMap) Add(t reflect.Type, name string) error {
	if err := m.validate(t, name); err != nil {
		return err
	}
	m.entries = append(m.entries, Entry{Type: t, Name: name})
	m.exact[t] = name
	return nil
}

// InsertBefore inserts a mapping immediately before anchor.
func (m *TypeMap) InsertBefore(anchor, t reflect.Type, name string) error {
	return m.insert(anchor, t, name, 0)
}

// InsertAfter inserts a mapping immediately after anchor.
func (m *TypeMap) InsertAfter(anchor, t reflect.Type, name string) error {
	return m.insert(anchor, t, name, 1)
}

func (m *TypeMap) insert(anchor, t reflect.Type, name string, offset int) error {
	if err := m.validate(t, name); err != nil {
		return err
	}
	idx := m.indexOf(anchor)
	if idx < 0 {
		return fmt.Errorf("%w: %v", ErrAnchorNotFound, anchor)
	}
	pos := idx + offset
	m.entries = append(m.entries, Entry{})
	copy(m.entries[pos+1:], m.entries[pos:])
	m.entries[pos] = Entry{Type: t, Name: name}
	m.exact[t] = name
	return nil
}

// Remove deletes the mapping for t. It reports whether t was registered.
func (m *TypeMap) Remove(t reflect.Type) bool {
	idx := m.indexOf(t)
	if idx < 0 {
		return false
	}
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	delete(m.exact, t)
	return true
}

func (m *TypeMap) indexOf(t reflect.Type) int {
	if t == nil {
		return -1
	}
	for i, e := range m.entries {
		if e.Type == t {
			return i
		}
	}
	return -1
}

// Len returns the number of mappings.
func (m *TypeMap) Len() int { return len(m.entries) }

// Entries returns a copy of the mappings in scan order.
func (m *TypeMap) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Clone returns an independent copy, ExactMatch included.
func (m *TypeMap) Clone() *TypeMap {
	out := &TypeMap{
		ExactMatch: m.ExactMatch,
		entries:    m.Entries(),
		exact:      make(map[reflect.Type]string, len(m.exact)),
	}
	for k, v := range m.exact {
		out.exact[k] = v
	}
	return out
}

// FindBestMatch returns the wire name for t. Pointer types are looked up
// through their element type.
func (m *TypeMap) FindBestMatch(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if name, ok := m.exact[t]; ok {
		return name, true
	}
	if m.ExactMatch {
		return "", false
	}

	for _, e := range m.entries {
		if derivesFrom(t, e.Type) {
			return e.Name, true
		}
	}
	return "", false
}

// FindBestMatchValue returns the wire name for the dynamic type of v.
func (m *TypeMap) FindBestMatchValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	return m.FindBestMatch(reflect.TypeOf(v))
}

// derivesFrom reports whether query can stand in for base.
func derivesFrom(query, base reflect.Type) bool {
	if query == base {
		return true
	}
	if base.Kind() == reflect.Interface {
		return query.Implements(base)
	}
	if base == anySliceType {
		return query.Kind() == reflect.Slice || query.Kind() == reflect.Array
	}
	if query.Kind() == reflect.Struct && embeds(query, base, 0) {
		return true
	}
	return underlying(query) == base
}

const maxEmbedDepth = 8

func embeds(s, base reflect.Type, depth int) bool {
	if depth > maxEmbedDepth {
		return false
	}
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft == base {
			return true
		}
		if ft.Kind() == reflect.Struct && embeds(ft, base, depth+1) {
			return true
		}
	}
	return false
}

var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
	reflect.String:  reflect.TypeOf(""),
}

// underlying returns the predeclared type behind a defined basic type, or
// nil when t is not one.
func underlying(t reflect.Type) reflect.Type {
	base, ok := kindTypes[t.Kind()]
	if !ok || base == t {
		return nil
	}
	return base
}
