// Package encoder defines the escaping strategies applied to wire documents.
//
// Field encoding applies to structural identifiers: entity id and type,
// attribute names and resolved wire type names. Value encoding applies only
// to string and URL attribute values, never to numbers, booleans,
// structured values or metadata.
package encoder

import (
	"fmt"
	"strings"
)

// FieldEncoder escapes structural identifiers.
type FieldEncoder interface {
	EncodeField(s string) string
	DecodeField(s string) string
}

// ValueEncoder escapes string attribute values.
type ValueEncoder interface {
	EncodeValue(s string) string
	DecodeValue(s string) string
}

// Codec combines both strategies.
type Codec interface {
	FieldEncoder
	ValueEncoder
}

// Noop leaves every string unchanged.
type Noop struct{}

func (Noop) EncodeField(s string) string { return s }
func (Noop) DecodeField(s string) string { return s }
func (Noop) EncodeValue(s string) string { return s }
func (Noop) DecodeValue(s string) string { return s }

// forbidden lists the characters the broker rejects in identifiers and
// string values.
const forbidden = `<>"'=;()`

// Forbidden percent-escapes the characters the broker rejects, plus '%'
// itself so the escaping is reversible.
type Forbidden struct{}

func (Forbidden) EncodeField(s string) string { return escape(s) }
func (Forbidden) DecodeField(s string) string { return unescape(s) }
func (Forbidden) EncodeValue(s string) string { return escape(s) }
func (Forbidden) DecodeValue(s string) string { return unescape(s) }

func escape(s string) string {
	if !strings.ContainsAny(s, forbidden+"%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || strings.IndexByte(forbidden, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if c, ok := unhex(s[i+1], s[i+2]); ok {
				b.WriteByte(c)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(hi, lo byte) (byte, bool) {
	h, ok1 := hexVal(hi)
	l, ok2 := hexVal(lo)
	return h<<4 | l, ok1 && ok2
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ForMode returns the codec for a configuration mode name.
func ForMode(mode string) (Codec, error) {
	switch strings.ToLower(mode) {
	case "", "none", "noop":
		return Noop{}, nil
	case "forbidden":
		return Forbidden{}, nil
	default:
		return nil, fmt.Errorf("encoder: unknown mode %q", mode)
	}
}
