package schema

// MethodKind is one of the five CRUD operations.
type MethodKind string

const (
	MethodList   MethodKind = "list"
	MethodGet    MethodKind = "get"
	MethodCreate MethodKind = "create"
	MethodUpdate MethodKind = "update"
	MethodDelete MethodKind = "delete"
)

// Methods returns every method kind in canonical order.
func Methods() []MethodKind {
	return []MethodKind{MethodList, MethodGet, MethodCreate, MethodUpdate, MethodDelete}
}

// Valid reports whether m is a known method kind.
func (m MethodKind) Valid() bool {
	switch m {
	case MethodList, MethodGet, MethodCreate, MethodUpdate, MethodDelete:
		return true
	default:
		return false
	}
}

// Definition is an object definition as written in a YAML file.
type Definition struct {
	// Object is the schema name, used as the registry key.
	Object string `yaml:"object"`

	// Endpoint is the collection path relative to the platform base URL.
	Endpoint string `yaml:"endpoint"`

	// ObjectType labels decoded records. Defaults to Object.
	ObjectType string `yaml:"objectType,omitempty"`

	Description string `yaml:"description,omitempty"`

	Methods []MethodKind `yaml:"methods"`

	// Fields is the shared dictionary bare field references resolve against.
	Fields map[string]FieldDef `yaml:"fields,omitempty"`

	QueryParameters []ParamDef `yaml:"queryParameters,omitempty"`

	Create *OperationDef `yaml:"create,omitempty"`
	Update *OperationDef `yaml:"update,omitempty"`

	Properties []PropertySpec `yaml:"properties,omitempty"`

	Actions map[string]ActionDef `yaml:"actions,omitempty"`
}

// OperationDef lists the payload fields of a create or update operation.
type OperationDef struct {
	Required []FieldRef `yaml:"required,omitempty"`
	Optional []FieldRef `yaml:"optional,omitempty"`
}

// ActionDef is a custom sub-endpoint operation as written in a definition.
type ActionDef struct {
	// Kind is list (paginated) or get (single record).
	Kind        MethodKind `yaml:"kind"`
	Path        string     `yaml:"path"`
	Description string     `yaml:"description,omitempty"`
	Parameters  []ParamDef `yaml:"parameters,omitempty"`
}

// ObjectSchema is a loaded, validated object definition.
// It is never mutated after Load returns and may be shared freely.
type ObjectSchema struct {
	Name        string
	Endpoint    string
	ObjectType  string
	Description string

	QueryParameters []ParamSpec
	Create          OperationSpec
	Update          OperationSpec
	Properties      []PropertySpec
	Actions         map[string]Action

	methods    map[MethodKind]bool
	properties map[string]int
}

// OperationSpec is a resolved create or update payload description.
type OperationSpec struct {
	Required []ParamSpec
	Optional []ParamSpec
}

// Fields returns required fields followed by optional ones.
func (o OperationSpec) Fields() []ParamSpec {
	fields := make([]ParamSpec, 0, len(o.Required)+len(o.Optional))
	fields = append(fields, o.Required...)
	return append(fields, o.Optional...)
}

// Action is a resolved custom operation.
type Action struct {
	Name        string
	Kind        MethodKind
	Path        string
	Description string
	Parameters  []ParamSpec
}

// Supports reports whether the schema supports the method.
func (s *ObjectSchema) Supports(m MethodKind) bool {
	return s.methods[m]
}

// SupportedMethods returns the supported methods in canonical order.
func (s *ObjectSchema) SupportedMethods() []MethodKind {
	var out []MethodKind
	for _, m := range Methods() {
		if s.methods[m] {
			out = append(out, m)
		}
	}
	return out
}

// Property looks up a declared property by name.
func (s *ObjectSchema) Property(name string) (PropertySpec, bool) {
	i, ok := s.properties[name]
	if !ok {
		return PropertySpec{}, false
	}
	return s.Properties[i], true
}

// Action looks up a custom action by name.
func (s *ObjectSchema) Action(name string) (Action, bool) {
	a, ok := s.Actions[name]
	return a, ok
}

// Operation returns the payload spec for create or update.
func (s *ObjectSchema) Operation(m MethodKind) (OperationSpec, bool) {
	switch m {
	case MethodCreate:
		return s.Create, true
	case MethodUpdate:
		return s.Update, true
	default:
		return OperationSpec{}, false
	}
}
