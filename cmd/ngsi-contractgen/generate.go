package main

import (
	"fmt"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}

var registerTmpl = template.Must(template.New("register").Funcs(funcMap).Parse(`// Code generated by ngsi-contractgen. DO NOT EDIT.

package {{.Package}}

import (
	"reflect"

	"github.com/ngsi-go/ngsi/pkg/contract"
)

// {{.Func}} installs the contracts of {{range $i, $e := .Entities}}{{if $i}}, {{end}}{{$e.Name}}{{end}} into s.
func {{.Func}}(s *contract.Store) error {
{{- range .Entities}}
	if err := s.Register(reflect.TypeOf({{.Name}}{}), contract.Descriptor{
		ID:   {{quote .ID}},
		Type: {{quote .Type}},
{{- if .Attributes}}
		Attributes: []contract.AttributeDescriptor{
{{- range .Attributes}}
			{Field: {{quote .Field}}, Name: {{quote .Name}}{{if .WireType}}, WireType: {{quote .WireType}}{{end}}{{if .ReadOnly}}, ReadOnly: true{{end}}{{if .Raw}}, Raw: true{{end}}{{if .SkipEncode}}, SkipEncode: true{{end}}},
{{- end}}
		},
{{- end}}
{{- if .Metadata}}
		Metadata: []contract.MetadataDescriptor{
{{- range .Metadata}}
			{Field: {{quote .Field}}, Attribute: {{quote .Attribute}}},
{{- end}}
		},
{{- end}}
	}); err != nil {
		return err
	}
{{- end}}
	return nil
}
`))

type registerData struct {
	Package  string
	Func     string
	Entities []Entity
}

// Generate renders the registration function for pkg.
func Generate(pkg *Package, funcName string) (string, error) {
	if len(pkg.Entities) == 0 {
		return "", fmt.Errorf("package %s: no entity types found", pkg.Name)
	}
	var b strings.Builder
	err := registerTmpl.Execute(&b, registerData{
		Package:  pkg.Name,
		Func:     funcName,
		Entities: pkg.Entities,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
