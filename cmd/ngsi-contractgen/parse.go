package main

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/ngsi-go/ngsi/pkg/contract"
)

// maxDepth bounds embedded-struct flattening.
const maxDepth = 8

// Package is the parsed input of one generator run.
type Package struct {
	Name     string
	Entities []Entity
}

// Entity is one struct type with an explicit contract.
type Entity struct {
	Name       string
	ID         string
	Type       string
	Attributes []Attribute
	Metadata   []MetadataField
}

// Attribute mirrors contract.AttributeDescriptor.
type Attribute struct {
	Field      string
	Name       string
	WireType   string
	ReadOnly   bool
	Raw        bool
	SkipEncode bool
}

// MetadataField mirrors contract.MetadataDescriptor.
type MetadataField struct {
	Field     string
	Attribute string
}

// ParseDir parses the non-test Go files of dir, skipping the file named
// output. only restricts the result to the named struct types.
func ParseDir(dir, output string, only []string) (*Package, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var files []*ast.File
	for _, path := range paths {
		base := filepath.Base(path)
		if strings.HasSuffix(base, "_test.go") || base == output {
			continue
		}
		f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no Go files in %s", dir)
	}
	return collect(files, only)
}

// ParseSource parses a single source file.
func ParseSource(filename string, src []byte, only []string) (*Package, error) {
	f, err := parser.ParseFile(token.NewFileSet(), filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	return collect([]*ast.File{f}, only)
}

func collect(files []*ast.File, only []string) (*Package, error) {
	pkg := &Package{Name: files[0].Name.Name}
	structs := make(map[string]*ast.StructType)
	var order []string
	for _, f := range files {
		if f.Name.Name != pkg.Name {
			return nil, fmt.Errorf("mixed packages %s and %s", pkg.Name, f.Name.Name)
		}
		for _, decl := range f.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*ast.TypeSpec)
				st, ok := ts.Type.(*ast.StructType)
				if !ok || ts.TypeParams != nil {
					continue
				}
				structs[ts.Name.Name] = st
				order = append(order, ts.Name.Name)
			}
		}
	}

	if len(only) > 0 {
		for _, name := range only {
			st, ok := structs[name]
			if !ok {
				return nil, fmt.Errorf("type %s: not a struct in package %s", name, pkg.Name)
			}
			e, err := buildEntity(name, st, structs)
			if err != nil {
				return nil, err
			}
			if e.ID == "" || e.Type == "" {
				return nil, fmt.Errorf("type %s: %w", name, contract.ErrInvalidEntityType)
			}
			pkg.Entities = append(pkg.Entities, e)
		}
		return pkg, nil
	}

	for _, name := range order {
		e, err := buildEntity(name, structs[name], structs)
		if err != nil {
			return nil, err
		}
		if e.ID != "" && e.Type != "" {
			pkg.Entities = append(pkg.Entities, e)
		}
	}
	return pkg, nil
}

type member struct {
	field string
	depth int
	tag   contract.Tag
}

func buildEntity(name string, st *ast.StructType, structs map[string]*ast.StructType) (Entity, error) {
	var members []member
	if err := walk(st, structs, 0, &members); err != nil {
		return Entity{}, fmt.Errorf("type %s: %w", name, err)
	}

	e := Entity{Name: name}
	var err error
	if e.ID, err = pickIdentity(members, "id"); err != nil {
		return Entity{}, fmt.Errorf("type %s: %w", name, err)
	}
	if e.Type, err = pickIdentity(members, "type"); err != nil {
		return Entity{}, fmt.Errorf("type %s: %w", name, err)
	}

	shallowest := make(map[string]int)
	for _, m := range members {
		if isIdentity(m) || m.tag.MetadataOf != "" {
			continue
		}
		if d, ok := shallowest[m.tag.Name]; !ok || m.depth < d {
			shallowest[m.tag.Name] = m.depth
		}
	}

	for _, m := range members {
		switch {
		case isIdentity(m):
		case m.tag.MetadataOf != "":
			e.Metadata = append(e.Metadata, MetadataField{Field: m.field, Attribute: m.tag.MetadataOf})
		case m.depth == shallowest[m.tag.Name]:
			e.Attributes = append(e.Attributes, Attribute{
				Field:      m.field,
				Name:       m.tag.Name,
				WireType:   m.tag.WireType,
				ReadOnly:   m.tag.ReadOnly,
				Raw:        m.tag.Raw,
				SkipEncode: m.tag.NoEncode,
			})
		}
	}
	return e, nil
}

func isIdentity(m member) bool {
	return m.tag.Name == "id" || m.tag.Name == "type"
}

// walk collects tagged members depth-first, flattening embedded structs
// declared in the same package.
func walk(st *ast.StructType, structs map[string]*ast.StructType, depth int, out *[]member) error {
	if depth > maxDepth {
		return nil
	}
	for _, f := range st.Fields.List {
		tags := structTag(f)
		raw, hasTag := tags.Lookup(contract.TagName)
		tag, err := contract.ParseTag(raw)
		if err != nil {
			return err
		}
		if tag.Skip {
			continue
		}

		if len(f.Names) == 0 {
			if hasTag {
				return errors.New("tagged embedded fields are not supported")
			}
			if _, ok := f.Type.(*ast.StarExpr); ok {
				continue
			}
			ident, ok := f.Type.(*ast.Ident)
			if !ok {
				return fmt.Errorf("embedded %s: only structs declared in the package are supported", exprString(f.Type))
			}
			embedded, ok := structs[ident.Name]
			if !ok {
				continue
			}
			if err := walk(embedded, structs, depth+1, out); err != nil {
				return err
			}
			continue
		}

		for _, n := range f.Names {
			if !n.IsExported() {
				continue
			}
			t := tag
			if t.Name == "" {
				name, excluded := jsonName(tags)
				if excluded && !hasTag {
					continue
				}
				t.Name = name
			}
			if t.Name == "" {
				t.Name = n.Name
			}
			*out = append(*out, member{field: n.Name, depth: depth, tag: t})
		}
	}
	return nil
}

func structTag(f *ast.Field) reflect.StructTag {
	if f.Tag == nil {
		return ""
	}
	s, err := strconv.Unquote(f.Tag.Value)
	if err != nil {
		return ""
	}
	return reflect.StructTag(s)
}

func jsonName(tags reflect.StructTag) (string, bool) {
	tag, ok := tags.Lookup("json")
	if !ok {
		return "", false
	}
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

func pickIdentity(members []member, key string) (string, error) {
	var found string
	best := -1
	ambiguous := false
	for _, m := range members {
		if m.tag.Name != key {
			continue
		}
		switch {
		case best < 0 || m.depth < best:
			best, found, ambiguous = m.depth, m.field, false
		case m.depth == best:
			ambiguous = true
		}
	}
	if ambiguous {
		return "", fmt.Errorf("%w: %q", contract.ErrAmbiguousIdentity, key)
	}
	return found, nil
}

func exprString(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.StarExpr:
		return "*" + exprString(x.X)
	case *ast.SelectorExpr:
		return exprString(x.X) + "." + x.Sel.Name
	}
	return fmt.Sprintf("%T", e)
}
