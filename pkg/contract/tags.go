package contract

import (
	"fmt"
	"reflect"
	"strings"
)

// TagName is the struct tag key read during discovery.
const TagName = "ngsi"

// Reserved wire keys that mark identity members.
const (
	idKey   = "id"
	typeKey = "type"
)

// maxDepth bounds embedded-struct flattening.
const maxDepth = 8

// Tag is a parsed ngsi struct tag.
type Tag struct {
	Name       string
	Skip       bool
	ReadOnly   bool
	Raw        bool
	NoEncode   bool
	WireType   string
	MetadataOf string
}

// ParseTag splits an ngsi tag. Unknown options are rejected so typos do not
// silently change behavior.
func ParseTag(tag string) (Tag, error) {
	if tag == "-" {
		return Tag{Skip: true}, nil
	}
	parts := strings.Split(tag, ",")
	opts := Tag{Name: parts[0]}
	for _, p := range parts[1:] {
		key, val, _ := strings.Cut(p, "=")
		switch key {
		case "readonly":
			opts.ReadOnly = true
		case "raw":
			opts.Raw = true
		case "noencode":
			opts.NoEncode = true
		case "wiretype":
			opts.WireType = val
		case "metadata":
			opts.MetadataOf = val
		case "":
		default:
			return opts, fmt.Errorf("unknown tag option %q", key)
		}
	}
	return opts, nil
}

// jsonName returns the name part of a json tag, and whether the field is
// excluded by it.
func jsonName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return "", false
	}
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

type candidate struct {
	field reflect.StructField
	index []int
	depth int
	opts  Tag
}

// discover builds a contract from struct tags.
func discover(t reflect.Type) (*EntityContract, error) {
	var cands []candidate
	if err := walk(t, nil, 0, &cands); err != nil {
		return nil, err
	}

	c := &EntityContract{Type: t}
	var err error
	if c.id, err = pickIdentity(cands, idKey); err != nil {
		return nil, err
	}
	if c.entType, err = pickIdentity(cands, typeKey); err != nil {
		return nil, err
	}

	// A shallower attribute hides deeper ones with the same wire name.
	shallowest := make(map[string]int)
	for _, cd := range cands {
		if cd.opts.Name == idKey || cd.opts.Name == typeKey || cd.opts.MetadataOf != "" {
			continue
		}
		if d, ok := shallowest[cd.opts.Name]; !ok || cd.depth < d {
			shallowest[cd.opts.Name] = cd.depth
		}
	}

	for _, cd := range cands {
		switch {
		case cd.opts.Name == idKey || cd.opts.Name == typeKey:
		case cd.opts.MetadataOf != "":
			c.Metadata = append(c.Metadata, MetadataLink{
				Field:     cd.index,
				FieldName: cd.field.Name,
				FieldType: cd.field.Type,
				Attribute: cd.opts.MetadataOf,
			})
		case cd.depth == shallowest[cd.opts.Name]:
			c.Attributes = append(c.Attributes, AttributeContract{
				WireName:     cd.opts.Name,
				Field:        cd.index,
				FieldName:    cd.field.Name,
				FieldType:    cd.field.Type,
				ExplicitType: cd.opts.WireType,
				ReadOnly:     cd.opts.ReadOnly,
				Raw:          cd.opts.Raw,
				SkipEncode:   cd.opts.NoEncode,
			})
		}
	}
	return c, nil
}

// walk collects candidate fields depth-first, flattening embedded structs.
func walk(t reflect.Type, prefix []int, depth int, out *[]candidate) error {
	if depth > maxDepth {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		tag, hasTag := f.Tag.Lookup(TagName)
		opts, err := ParseTag(tag)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if opts.Skip {
			continue
		}

		if f.Anonymous && !hasTag {
			if f.Type.Kind() == reflect.Struct {
				if err := walk(f.Type, index, depth+1, out); err != nil {
					return err
				}
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		if opts.Name == "" {
			name, excluded := jsonName(f)
			if excluded && !hasTag {
				continue
			}
			opts.Name = name
		}
		if opts.Name == "" {
			opts.Name = f.Name
		}

		*out = append(*out, candidate{
			field: f,
			index: index,
			depth: depth,
			opts:  opts,
		})
	}
	return nil
}

// pickIdentity returns the index path of the shallowest member named key.
func pickIdentity(cands []candidate, key string) ([]int, error) {
	var found []int
	best := -1
	ambiguous := false
	for _, cd := range cands {
		if cd.opts.Name != key {
			continue
		}
		switch {
		case best < 0 || cd.depth < best:
			best, found, ambiguous = cd.depth, cd.index, false
		case cd.depth == best:
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousIdentity, key)
	}
	return found, nil
}
