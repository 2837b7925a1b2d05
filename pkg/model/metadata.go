package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata is an ordered, case-insensitive collection of metadata items.
// Names keep the spelling of their first insertion. The zero value is an
// empty collection ready to use.
type Metadata struct {
	names []string
	items map[string]MetadataItem
}

// NewMetadata creates an empty collection.
func NewMetadata() Metadata {
	return Metadata{items: make(map[string]MetadataItem)}
}

func foldKey(name string) string { return strings.ToLower(name) }

// Set adds or replaces an item. Replacing keeps the original position.
func (m *Metadata) Set(name string, item MetadataItem) {
	if m.items == nil {
		m.items = make(map[string]MetadataItem)
	}
	key := foldKey(name)
	if _, exists := m.items[key]; !exists {
		m.names = append(m.names, name)
	}
	m.items[key] = item
}

// Get returns the item stored under name, ignoring case.
func (m Metadata) Get(name string) (MetadataItem, bool) {
	item, ok := m.items[foldKey(name)]
	return item, ok
}

// Delete removes the item stored under name, ignoring case.
func (m *Metadata) Delete(name string) {
	key := foldKey(name)
	if _, exists := m.items[key]; !exists {
		return
	}
	delete(m.items, key)
	for i, n := range m.names {
		if foldKey(n) == key {
			m.names = append(m.names[:i:i], m.names[i+1:]...)
			break
		}
	}
}

// Len returns the number of items.
func (m Metadata) Len() int { return len(m.names) }

// Names returns item names in insertion order.
func (m Metadata) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Range calls fn for every item in insertion order until fn returns false.
func (m Metadata) Range(fn func(name string, item MetadataItem) bool) {
	for _, name := range m.names {
		if !fn(name, m.items[foldKey(name)]) {
			return
		}
	}
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		names: make([]string, len(m.names)),
		items: make(map[string]MetadataItem, len(m.items)),
	}
	copy(out.names, m.names)
	for k, v := range m.items {
		out.items[k] = v
	}
	return out
}

// MarshalJSON writes the collection as a JSON object in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		item, err := json.Marshal(m.items[foldKey(name)])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(item)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving document order. A JSON null
// yields an empty collection.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = NewMetadata()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata: expected name, got %v", tok)
		}
		var item MetadataItem
		if err := dec.Decode(&item); err != nil {
			return fmt.Errorf("metadata %q: %w", name, err)
		}
		m.Set(name, item)
	}
	_, err = dec.Token()
	return err
}
