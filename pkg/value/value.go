// Package value provides Container, a type-erased box holding exactly one
// attribute or metadata value.
//
// A Container holds either a native Go value (built with Of) or an undecoded
// JSON token received from the broker (built with FromRaw). A raw token is
// decoded at most once, on first use, and the decoded form is shared by every
// copy of the Container.
//
// Conversions go through a single entry point, As (or Container.To), which
// applies lenient coercion between numbers, text, booleans and timestamps:
//
//	c := value.FromRaw(json.RawMessage(`"21.5"`))
//	f, err := value.As[float64](c) // 21.5
package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sync"
	"time"
)

// Conversion errors.
var (
	ErrNilTarget       = errors.New("value: target must be a non-nil pointer")
	ErrConversion      = errors.New("value: conversion failed")
	ErrInvalidRawToken = errors.New("value: invalid JSON token")
)

// Kind classifies the value held by a Container.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindDecimal
	KindString
	KindTime
	KindSequence
	KindNative
	KindRaw
)

// String returns the kind name.
func (k Kind) String() string {
	names := []string{
		"null", "bool", "int", "uint", "float", "decimal",
		"string", "time", "sequence", "native", "raw",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// token is an undecoded JSON value shared between Container copies.
type token struct {
	data json.RawMessage

	once    sync.Once
	decoded any
	err     error
}

func (t *token) decode() (any, error) {
	t.once.Do(func() {
		dec := json.NewDecoder(bytes.NewReader(t.data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			t.err = fmt.Errorf("%w: %v", ErrInvalidRawToken, err)
			return
		}
		t.decoded = normalizeNumbers(v)
	})
	return t.decoded, t.err
}

// Container holds exactly one logical value. The zero Container is null.
type Container struct {
	kind   Kind
	native any
	raw    *token
}

// Of boxes a native value. Pointers are dereferenced, url.URL values are
// held as their string form, and json.RawMessage is treated like FromRaw.
func Of(v any) Container {
	switch x := v.(type) {
	case nil:
		return Container{}
	case Container:
		return x
	case json.RawMessage:
		return FromRaw(x)
	case url.URL:
		return Container{kind: KindString, native: x.String()}
	case *url.URL:
		if x == nil {
			return Container{}
		}
		return Container{kind: KindString, native: x.String()}
	case time.Time:
		return Container{kind: KindTime, native: x}
	case json.Number:
		return Container{kind: KindDecimal, native: x}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Container{}
		}
		rv = rv.Elem()
	}
	if rv.Type() != reflect.TypeOf(v) {
		return Of(rv.Interface())
	}
	return Container{kind: classify(rv), native: v}
}

// FromRaw boxes an undecoded JSON token. A nil or literal null token yields
// a null Container.
func FromRaw(data json.RawMessage) Container {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Container{}
	}
	cp := make(json.RawMessage, len(trimmed))
	copy(cp, trimmed)
	return Container{kind: KindRaw, raw: &token{data: cp}}
}

func classify(rv reflect.Value) Kind {
	switch rv.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.String:
		return KindString
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindNative
		}
		for i := 0; i < rv.Len(); i++ {
			if !isPrimitive(rv.Index(i)) {
				return KindNative
			}
		}
		return KindSequence
	default:
		return KindNative
	}
}

func isPrimitive(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	switch classify(rv) {
	case KindBool, KindInt, KindUint, KindFloat, KindString:
		return true
	}
	return rv.Type() == reflect.TypeOf(time.Time{})
}

// Kind returns the kind of the held value. Raw tokens report KindRaw until
// converted.
func (c Container) Kind() Kind { return c.kind }

// IsNull reports whether the Container holds no value.
func (c Container) IsNull() bool { return c.kind == KindNull }

// IsRaw reports whether the Container holds an undecoded wire token.
func (c Container) IsRaw() bool { return c.kind == KindRaw }

// Raw returns the undecoded wire token, or nil for native values.
func (c Container) Raw() json.RawMessage {
	if c.raw == nil {
		return nil
	}
	return c.raw.data
}

// Interface returns the held value. Raw tokens are decoded into the generic
// JSON shapes (bool, string, float64/int64, []any, map[string]any); numbers
// without a fractional part decode to int64.
func (c Container) Interface() any {
	switch c.kind {
	case KindNull:
		return nil
	case KindRaw:
		v, err := c.raw.decode()
		if err != nil {
			return nil
		}
		return v
	default:
		return c.native
	}
}

// Type returns the runtime type of the held value, or nil for null.
func (c Container) Type() reflect.Type {
	v := c.Interface()
	if v == nil {
		return nil
	}
	return reflect.TypeOf(v)
}

// To re-materializes the held value into target, which must be a non-nil
// pointer. A null Container sets target to its zero value.
func (c Container) To(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrNilTarget
	}
	dst := rv.Elem()

	switch c.kind {
	case KindNull:
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	case KindRaw:
		if err := json.Unmarshal(c.raw.data, target); err == nil {
			return nil
		}
		decoded, err := c.raw.decode()
		if err != nil {
			return err
		}
		return assign(decoded, dst)
	default:
		return assign(c.native, dst)
	}
}

// As converts the held value to T.
func As[T any](c Container) (T, error) {
	var out T
	err := c.To(&out)
	return out, err
}

// MarshalJSON implements json.Marshaler. Raw tokens are written unchanged.
func (c Container) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindNull:
		return []byte("null"), nil
	case KindRaw:
		return c.raw.data, nil
	case KindTime:
		return json.Marshal(c.native.(time.Time).UTC().Format(time.RFC3339Nano))
	default:
		return json.Marshal(c.native)
	}
}

// UnmarshalJSON implements json.Unmarshaler. The token is kept undecoded.
func (c *Container) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return ErrInvalidRawToken
	}
	*c = FromRaw(data)
	return nil
}

// Equal reports whether two containers hold the same JSON value.
func (c Container) Equal(other Container) bool {
	a, errA := c.MarshalJSON()
	b, errB := other.MarshalJSON()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// String returns a human-readable representation of the value.
func (c Container) String() string {
	if c.kind == KindRaw {
		return string(c.raw.data)
	}
	if c.kind == KindNull {
		return "null"
	}
	return fmt.Sprint(c.native)
}

// normalizeNumbers converts json.Number leaves into int64 or float64.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
		return x
	default:
		return v
	}
}
