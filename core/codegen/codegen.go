// Package codegen generates typed Go wrappers from object schemas.
//
// For every schema it emits a record type with one accessor per declared
// property and an API type whose methods call the dispatcher. The output
// is a single gofmt'ed file.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"sort"
	"strings"
	"text/template"

	"github.com/iancoleman/strcase"

	"github.com/artpar/restschema/core/schema"
)

// DefaultPackage is the package name used when none is set.
const DefaultPackage = "resources"

// Generator generates wrapper code from object schemas.
type Generator struct {
	schemas     []*schema.ObjectSchema
	packageName string
}

// NewGenerator creates a generator for the given schemas.
func NewGenerator(schemas ...*schema.ObjectSchema) *Generator {
	return &Generator{
		schemas:     schemas,
		packageName: DefaultPackage,
	}
}

// SetPackageName sets the package clause of the generated file.
func (g *Generator) SetPackageName(name string) {
	g.packageName = name
}

// Generate is shorthand for NewGenerator(schemas...).Generate with pkg set.
func Generate(pkg string, schemas []*schema.ObjectSchema) ([]byte, error) {
	g := NewGenerator(schemas...)
	if pkg != "" {
		g.SetPackageName(pkg)
	}
	return g.Generate()
}

// Generate renders the file. On a formatting failure the unformatted
// source is returned alongside the error.
func (g *Generator) Generate() ([]byte, error) {
	if !token.IsIdentifier(g.packageName) {
		return nil, fmt.Errorf("invalid package name %q", g.packageName)
	}
	if len(g.schemas) == 0 {
		return nil, fmt.Errorf("no schemas to generate")
	}

	data := fileData{Package: g.packageName}
	types := make(map[string]string)
	for _, s := range sortedSchemas(g.schemas) {
		td, err := buildType(s)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", s.Name, err)
		}
		for _, name := range []string{td.Type, td.API, "New" + td.API} {
			if prev, taken := types[name]; taken {
				return nil, fmt.Errorf("schemas %s and %s both generate %s", prev, s.Name, name)
			}
			types[name] = s.Name
		}
		if td.HasTime {
			data.NeedTime = true
		}
		if td.HasList || td.HasListAction {
			data.NeedPaginate = true
		}
		if td.HasList || td.HasGet || td.HasCreate || td.HasUpdate || td.HasDelete || len(td.Actions) > 0 {
			data.NeedContext = true
		}
		data.Types = append(data.Types, td)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("formatting generated code: %w", err)
	}
	return formatted, nil
}

type fileData struct {
	Package      string
	NeedContext  bool
	NeedTime     bool
	NeedPaginate bool
	Types        []typeData
}

type typeData struct {
	Resource    string
	Type        string
	API         string
	Description string

	Accessors []accessorData
	Actions   []actionData

	HasList   bool
	HasGet    bool
	HasCreate bool
	HasUpdate bool
	HasDelete bool

	HasTime       bool
	HasListAction bool
}

type accessorData struct {
	Method   string
	Property string
	Doc      string
	// Kind selects the accessor body: string, bool, int, list, dict or time.
	Kind string
}

type actionData struct {
	Method string
	Name   string
	Doc    string
	List   bool
}

// reserved names cannot be used as methods on the record wrapper.
var reserved = map[string]bool{"Record": true}

func buildType(s *schema.ObjectSchema) (typeData, error) {
	td := typeData{
		Resource:    s.Name,
		Type:        Identifier(s.Name),
		Description: oneLine(s.Description),
		HasList:     s.Supports(schema.MethodList),
		HasGet:      s.Supports(schema.MethodGet),
		HasCreate:   s.Supports(schema.MethodCreate),
		HasUpdate:   s.Supports(schema.MethodUpdate),
		HasDelete:   s.Supports(schema.MethodDelete),
	}
	if td.Type == "" {
		return td, fmt.Errorf("name %q yields no identifier", s.Name)
	}
	td.API = td.Type + "API"

	used := make(map[string]string)
	claim := func(method, source string) error {
		if reserved[method] {
			return fmt.Errorf("%s maps to reserved method %s", source, method)
		}
		if prev, taken := used[method]; taken {
			return fmt.Errorf("%s and %s both map to %s", prev, source, method)
		}
		used[method] = source
		return nil
	}

	for _, p := range s.Properties {
		a := accessorData{
			Method:   Identifier(p.Name),
			Property: p.Name,
			Doc:      oneLine(p.Description),
			Kind:     string(p.Type),
		}
		if a.Kind == "" {
			a.Kind = string(schema.TypeString)
		}
		if err := claim(a.Method, "property "+p.Name); err != nil {
			return td, err
		}
		td.Accessors = append(td.Accessors, a)
	}

	// Timestamp companions only when the name is free.
	for _, p := range s.Properties {
		if !isTimestamp(p) {
			continue
		}
		method := strings.TrimSuffix(Identifier(p.Name), "Time") + "At"
		if _, taken := used[method]; taken {
			continue
		}
		used[method] = "property " + p.Name
		td.Accessors = append(td.Accessors, accessorData{
			Method:   method,
			Property: p.Name,
			Kind:     "time",
		})
		td.HasTime = true
	}

	apiUsed := map[string]bool{"List": true, "Get": true, "Create": true, "Update": true, "Delete": true}
	names := make([]string, 0, len(s.Actions))
	for name := range s.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := s.Actions[name]
		method := Identifier(name)
		if apiUsed[method] {
			return td, fmt.Errorf("action %s collides with method %s", name, method)
		}
		apiUsed[method] = true
		ad := actionData{
			Method: method,
			Name:   name,
			Doc:    oneLine(a.Description),
			List:   a.Kind == schema.MethodList,
		}
		if ad.List {
			td.HasListAction = true
		}
		td.Actions = append(td.Actions, ad)
	}

	return td, nil
}

// isTimestamp reports whether a string property carries a date-time.
func isTimestamp(p schema.PropertySpec) bool {
	if p.Type != "" && p.Type != schema.TypeString {
		return false
	}
	if strings.Contains(p.Description, "ISO 8601") {
		return true
	}
	return p.Name == "start" || p.Name == "end" || strings.HasSuffix(p.Name, "Time")
}

var initialisms = map[string]string{
	"api":  "API",
	"http": "HTTP",
	"id":   "ID",
	"ip":   "IP",
	"json": "JSON",
	"sip":  "SIP",
	"uri":  "URI",
	"url":  "URL",
	"uuid": "UUID",
}

// Identifier converts a schema name into an exported Go identifier,
// spelling common initialisms in upper case: siteUrl becomes SiteURL.
func Identifier(name string) string {
	var b strings.Builder
	for _, word := range strings.Split(strcase.ToSnake(name), "_") {
		if word == "" {
			continue
		}
		if up, ok := initialisms[word]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(strcase.ToCamel(word))
	}
	id := b.String()
	if id != "" && !token.IsIdentifier(id) {
		id = "X" + id
	}
	return id
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortedSchemas(in []*schema.ObjectSchema) []*schema.ObjectSchema {
	out := make([]*schema.ObjectSchema, 0, len(in))
	for _, s := range in {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var fileTemplate = template.Must(template.New("file").Funcs(template.FuncMap{
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}).Parse(fileSource))

const fileSource = `// Code generated by restschema gen. DO NOT EDIT.

package {{.Package}}

import (
{{- if .NeedContext}}
	"context"
{{- end}}
{{- if .NeedTime}}
	"time"
{{- end}}

	"github.com/artpar/restschema/core/decode"
	"github.com/artpar/restschema/core/dispatch"
{{- if .NeedPaginate}}
	"github.com/artpar/restschema/core/paginate"
{{- end}}
)
{{range .Types}}{{$t := .}}
// {{.Type}} is a decoded {{.Resource}} record.{{if .Description}} {{.Description}}{{end}}
type {{.Type}} struct {
	decode.Record
}
{{range .Accessors}}
{{if eq .Kind "time"}}// {{.Method}} parses {{quote .Property}} as a timestamp.
func (r {{$t.Type}}) {{.Method}}() (time.Time, bool) {
	return r.Record.Time({{quote .Property}})
}
{{else}}// {{.Method}} returns {{quote .Property}}.{{if .Doc}} {{.Doc}}{{end}}
{{if eq .Kind "bool"}}func (r {{$t.Type}}) {{.Method}}() bool {
	return r.Record.Bool({{quote .Property}})
}
{{else if eq .Kind "int"}}func (r {{$t.Type}}) {{.Method}}() int {
	return r.Record.Int({{quote .Property}})
}
{{else if eq .Kind "list"}}func (r {{$t.Type}}) {{.Method}}() []any {
	v, _ := r.Record.Get({{quote .Property}})
	l, _ := v.([]any)
	return l
}
{{else if eq .Kind "dict"}}func (r {{$t.Type}}) {{.Method}}() map[string]any {
	v, _ := r.Record.Get({{quote .Property}})
	m, _ := v.(map[string]any)
	return m
}
{{else}}func (r {{$t.Type}}) {{.Method}}() string {
	return r.Record.String({{quote .Property}})
}
{{end}}{{end}}{{end}}
// {{.API}} calls the {{.Resource}} endpoints.
type {{.API}} struct {
	d *dispatch.Dispatcher
}

// New{{.API}} returns an API bound to d.
func New{{.API}}(d *dispatch.Dispatcher) *{{.API}} {
	return &{{.API}}{d: d}
}
{{if .HasList}}
// List starts a paginated listing of {{.Resource}} records.
func (a *{{.API}}) List(ctx context.Context, args map[string]any) (*paginate.Pager, error) {
	return a.d.List(ctx, {{quote .Resource}}, args)
}
{{end}}{{if .HasGet}}
// Get fetches one {{.Resource}} by id.
func (a *{{.API}}) Get(ctx context.Context, id string) ({{.Type}}, error) {
	rec, err := a.d.Get(ctx, {{quote .Resource}}, id)
	return {{.Type}}{rec}, err
}
{{end}}{{if .HasCreate}}
// Create creates a {{.Resource}}.
func (a *{{.API}}) Create(ctx context.Context, args map[string]any) ({{.Type}}, error) {
	rec, err := a.d.Create(ctx, {{quote .Resource}}, args)
	return {{.Type}}{rec}, err
}
{{end}}{{if .HasUpdate}}
// Update replaces the {{.Resource}} identified by id.
func (a *{{.API}}) Update(ctx context.Context, id string, args map[string]any) ({{.Type}}, error) {
	rec, err := a.d.Update(ctx, {{quote .Resource}}, id, args)
	return {{.Type}}{rec}, err
}
{{end}}{{if .HasDelete}}
// Delete removes the {{.Resource}} identified by id.
func (a *{{.API}}) Delete(ctx context.Context, id string) error {
	return a.d.Delete(ctx, {{quote .Resource}}, id)
}
{{end}}{{range .Actions}}
// {{.Method}} runs the {{quote .Name}} action.{{if .Doc}} {{.Doc}}{{end}}
{{if .List}}func (a *{{$t.API}}) {{.Method}}(ctx context.Context, args map[string]any) (*paginate.Pager, error) {
	return a.d.ListAction(ctx, {{quote $t.Resource}}, {{quote .Name}}, args)
}
{{else}}func (a *{{$t.API}}) {{.Method}}(ctx context.Context, args map[string]any) ({{$t.Type}}, error) {
	rec, err := a.d.GetAction(ctx, {{quote $t.Resource}}, {{quote .Name}}, args)
	return {{$t.Type}}{rec}, err
}
{{end}}{{end}}{{end}}`
