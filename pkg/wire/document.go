package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Reserved keys.
const (
	KeyID       = "id"
	KeyType     = "type"
	KeyValue    = "value"
	KeyMetadata = "metadata"
)

// Wire errors.
var (
	ErrNotObject = errors.New("wire: not a JSON object")
	ErrNotString = errors.New("wire: member is not a string")
)

var nullToken = json.RawMessage("null")

// Document is a generic entity document.
type Document map[string]json.RawMessage

// Parse decodes an entity document. The input must be a JSON object.
func Parse(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("wire: parse document: %w", err)
	}
	return doc, nil
}

// Marshal encodes the document with sorted keys.
func (d Document) Marshal() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]json.RawMessage(d))
}

// GetString decodes the member stored under key as a string.
func (d Document) GetString(key string) (string, bool, error) {
	raw, ok := d[key]
	if !ok || isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, fmt.Errorf("%w: %q", ErrNotString, key)
	}
	return s, true, nil
}

// SetString stores s under key.
func (d Document) SetString(key, s string) {
	d[key] = mustString(s)
}

// Set encodes v and stores it under key.
func (d Document) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: encode %q: %w", key, err)
	}
	d[key] = raw
	return nil
}

// Attributes returns every key except id and type, sorted.
func (d Document) Attributes() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		if k == KeyID || k == KeyType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Node decodes the attribute node stored under key.
func (d Document) Node(key string) (Node, bool, error) {
	raw, ok := d[key]
	if !ok {
		return nil, false, nil
	}
	n, err := ParseNode(raw)
	return n, true, err
}

// SetNode stores an attribute node under key.
func (d Document) SetNode(key string, n Node) error {
	raw, err := n.Marshal()
	if err != nil {
		return err
	}
	d[key] = raw
	return nil
}

// Clone returns a shallow copy. Raw members are shared; they are never
// modified in place.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Node is one attribute node. Unknown members are preserved.
type Node map[string]json.RawMessage

// ParseNode decodes an attribute node. Anything other than a JSON object is
// returned as a node holding only a value, so key-value payloads are
// tolerated.
func ParseNode(raw json.RawMessage) (Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var n Node
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, fmt.Errorf("wire: parse attribute: %w", err)
		}
		return n, nil
	}
	return Node{KeyValue: trimmed}, nil
}

// HasValue reports whether the node carries a "value" member.
func (n Node) HasValue() bool {
	_, ok := n[KeyValue]
	return ok
}

// Value returns the raw value, or JSON null when absent.
func (n Node) Value() json.RawMessage {
	if v, ok := n[KeyValue]; ok {
		return v
	}
	return nullToken
}

// Type returns the decoded type name, or "" when absent.
func (n Node) Type() string {
	var s string
	if raw, ok := n[KeyType]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Metadata returns the raw metadata object, or nil when absent or null.
func (n Node) Metadata() json.RawMessage {
	raw, ok := n[KeyMetadata]
	if !ok || isNull(raw) {
		return nil
	}
	return raw
}

// Marshal encodes the node with sorted keys.
func (n Node) Marshal() ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage(n))
}

// StringValue reports the value as a string when it is a JSON string.
func (n Node) StringValue() (string, bool) {
	raw := bytes.TrimSpace(n.Value())
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// NewNode builds a node from a raw value and a type name. An empty type
// name is omitted.
func NewNode(value json.RawMessage, typeName string) Node {
	n := Node{KeyValue: value}
	if typeName != "" {
		n[KeyType] = mustString(typeName)
	}
	return n
}

// String encodes s as a JSON string token.
func String(s string) json.RawMessage {
	return mustString(s)
}

func mustString(s string) json.RawMessage {
	raw, err := json.Marshal(s)
	if err != nil {
		// Marshaling a string cannot fail.
		panic(err)
	}
	return raw
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), nullToken)
}

// IsNull reports whether raw is absent or the JSON null literal.
func IsNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || isNull(raw)
}
