package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/artpar/restschema/pkg/apierror"
)

// ParseFile parses an object definition from a YAML file.
func ParseFile(path string) (*ObjectSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	obj, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obj, nil
}

// Parse parses an object definition from YAML bytes and loads it.
func Parse(data []byte) (*ObjectSchema, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &apierror.SchemaError{Err: fmt.Errorf("parse yaml: %w", err)}
	}
	return Load(def)
}

// ParseDir parses all definitions from a directory, including subdirectories.
// Files are visited in lexical order.
func ParseDir(dir string) ([]*ObjectSchema, error) {
	var objects []*ObjectSchema

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			objects = append(objects, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		obj, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

// Load resolves and validates a definition. All problems found are reported
// together in a single SchemaError.
func Load(def Definition) (*ObjectSchema, error) {
	l := loader{def: def}
	obj := l.load()
	if err := l.errs.ErrorOrNil(); err != nil {
		return nil, &apierror.SchemaError{Object: def.Object, Err: err}
	}
	return obj, nil
}

type loader struct {
	def  Definition
	errs *multierror.Error
}

func (l *loader) fail(format string, args ...any) {
	l.errs = multierror.Append(l.errs, fmt.Errorf(format, args...))
}

func (l *loader) load() *ObjectSchema {
	def := l.def

	if def.Object == "" {
		l.fail("object name is required")
	} else if !isValidIdentifier(def.Object) {
		l.fail("object name %q is not a valid identifier", def.Object)
	}
	if strings.Trim(def.Endpoint, "/") == "" {
		l.fail("endpoint is required")
	}

	obj := &ObjectSchema{
		Name:        def.Object,
		Endpoint:    strings.Trim(def.Endpoint, "/"),
		ObjectType:  def.ObjectType,
		Description: def.Description,
		methods:     make(map[MethodKind]bool),
		properties:  make(map[string]int),
		Actions:     make(map[string]Action),
	}
	if obj.ObjectType == "" {
		obj.ObjectType = def.Object
	}

	for _, m := range def.Methods {
		if !m.Valid() {
			l.fail("unknown method %q", m)
			continue
		}
		obj.methods[m] = true
	}

	obj.Properties = l.loadProperties(obj)
	obj.QueryParameters = l.loadParams("queryParameters", def.QueryParameters)

	if def.Create != nil {
		if !obj.methods[MethodCreate] {
			l.fail("create fields declared but create is not a supported method")
		}
		obj.Create = l.loadOperation(MethodCreate, *def.Create)
	}
	if def.Update != nil {
		if !obj.methods[MethodUpdate] {
			l.fail("update fields declared but update is not a supported method")
		}
		obj.Update = l.loadOperation(MethodUpdate, *def.Update)
	}

	l.checkCrossNamespaceTypes(obj)

	names := make([]string, 0, len(def.Actions))
	for name := range def.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if a, ok := l.loadAction(name, def.Actions[name]); ok {
			obj.Actions[name] = a
		}
	}

	return obj
}

func (l *loader) loadProperties(obj *ObjectSchema) []PropertySpec {
	props := make([]PropertySpec, 0, len(l.def.Properties))
	for _, p := range l.def.Properties {
		if p.Name == "" {
			l.fail("property name is required")
			continue
		}
		if _, dup := obj.properties[p.Name]; dup {
			l.fail("property %q declared twice", p.Name)
			continue
		}
		p.Type = p.Type.orString()
		if !p.Type.Valid() {
			l.fail("property %q: unknown type %q", p.Name, p.Type)
		}
		obj.properties[p.Name] = len(props)
		props = append(props, p)
	}

	if obj.methods[MethodList] || obj.methods[MethodGet] {
		if _, ok := obj.properties["id"]; !ok {
			l.fail("properties must include id")
		}
	}
	return props
}

// loadParams resolves a parameter namespace; parameters are optional unless
// marked required.
func (l *loader) loadParams(where string, defs []ParamDef) []ParamSpec {
	ns := newNamespace(l, where)
	params := make([]ParamSpec, 0, len(defs))
	for _, d := range defs {
		p, ok := l.resolveInline(where, d)
		if !ok {
			continue
		}
		p.Optional = !d.Required
		if ns.add(p) {
			params = append(params, p)
		}
	}
	return params
}

func (l *loader) loadOperation(m MethodKind, def OperationDef) OperationSpec {
	where := string(m)
	ns := newNamespace(l, where)

	required := make(map[string]bool, len(def.Required))
	for _, ref := range def.Required {
		required[ref.Name()] = true
	}

	var spec OperationSpec
	for _, ref := range def.Required {
		p, ok := l.resolveRef(where, ref)
		if !ok {
			continue
		}
		p.Optional = false
		if ns.add(p) {
			spec.Required = append(spec.Required, p)
		}
	}
	for _, ref := range def.Optional {
		if required[ref.Name()] {
			l.fail("%s: field %q is both required and optional", where, ref.Name())
			continue
		}
		p, ok := l.resolveRef(where, ref)
		if !ok {
			continue
		}
		p.Optional = true
		if ns.add(p) {
			spec.Optional = append(spec.Optional, p)
		}
	}
	return spec
}

func (l *loader) loadAction(name string, def ActionDef) (Action, bool) {
	where := "action " + name
	ok := true
	if !isValidIdentifier(name) {
		l.fail("action name %q is not a valid identifier", name)
		ok = false
	}
	if def.Kind != MethodList && def.Kind != MethodGet {
		l.fail("%s: kind must be list or get, got %q", where, def.Kind)
		ok = false
	}
	if strings.Trim(def.Path, "/") == "" {
		l.fail("%s: path is required", where)
		ok = false
	}
	return Action{
		Name:        name,
		Kind:        def.Kind,
		Path:        strings.Trim(def.Path, "/"),
		Description: def.Description,
		Parameters:  l.loadParams(where, def.Parameters),
	}, ok
}

// resolveRef turns a field reference into a parameter spec. Bare names take
// their type and description from the field dictionary, then from the
// properties, then default to string.
func (l *loader) resolveRef(where string, ref FieldRef) (ParamSpec, bool) {
	if ref.IsInline() {
		return l.resolveInline(where, *ref.inline)
	}

	name := ref.Name()
	if name == "" {
		l.fail("%s: field name is required", where)
		return ParamSpec{}, false
	}

	p := ParamSpec{Name: name, WireName: name, Type: TypeString}
	if f, ok := l.def.Fields[name]; ok {
		p.Type = f.Type.orString()
		p.Description = f.Description
	} else {
		for _, prop := range l.def.Properties {
			if prop.Name == name {
				p.Type = prop.Type.orString()
				p.Description = prop.Description
				break
			}
		}
	}
	if !p.Type.Valid() {
		l.fail("%s: field %q: unknown type %q", where, name, p.Type)
		return ParamSpec{}, false
	}
	return p, true
}

func (l *loader) resolveInline(where string, d ParamDef) (ParamSpec, bool) {
	if d.Name == "" {
		l.fail("%s: parameter name is required", where)
		return ParamSpec{}, false
	}
	p := ParamSpec{
		Name:        d.Name,
		WireName:    d.WireName,
		Description: d.Description,
		Type:        d.Type.orString(),
		Default:     d.Default,
	}
	if p.WireName == "" {
		p.WireName = p.Name
	}
	if f, ok := l.def.Fields[d.Name]; ok {
		if d.Type == "" {
			p.Type = f.Type.orString()
		}
		if p.Description == "" {
			p.Description = f.Description
		}
	}
	if !p.Type.Valid() {
		l.fail("%s: parameter %q: unknown type %q", where, d.Name, p.Type)
		return ParamSpec{}, false
	}
	return p, true
}

// checkCrossNamespaceTypes rejects names declared as a query parameter and as
// a payload field with different types.
func (l *loader) checkCrossNamespaceTypes(obj *ObjectSchema) {
	query := make(map[string]PrimitiveType, len(obj.QueryParameters))
	for _, p := range obj.QueryParameters {
		query[p.Name] = p.Type
	}
	for _, m := range []MethodKind{MethodCreate, MethodUpdate} {
		spec, _ := obj.Operation(m)
		for _, f := range spec.Fields() {
			if t, ok := query[f.Name]; ok && t != f.Type {
				l.fail("field %q is %s in queryParameters but %s in %s", f.Name, t, f.Type, m)
			}
		}
	}
}

// namespace tracks logical and wire names within one parameter set.
type namespace struct {
	l     *loader
	where string
	names map[string]bool
	wires map[string]string
}

func newNamespace(l *loader, where string) *namespace {
	return &namespace{l: l, where: where, names: map[string]bool{}, wires: map[string]string{}}
}

func (n *namespace) add(p ParamSpec) bool {
	if n.names[p.Name] {
		n.l.fail("%s: %q declared twice", n.where, p.Name)
		return false
	}
	if other, ok := n.wires[p.WireName]; ok {
		n.l.fail("%s: wire name %q used by both %q and %q", n.where, p.WireName, other, p.Name)
		return false
	}
	// Arguments may be keyed by either name, so the two sets must not overlap.
	if other, ok := n.wires[p.Name]; ok {
		n.l.fail("%s: name %q is the wire name of %q", n.where, p.Name, other)
		return false
	}
	if p.WireName != p.Name && n.names[p.WireName] {
		n.l.fail("%s: wire name %q of %q is another parameter's name", n.where, p.WireName, p.Name)
		return false
	}
	n.names[p.Name] = true
	n.wires[p.WireName] = p.Name
	return true
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
