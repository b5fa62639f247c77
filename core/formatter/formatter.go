// Package formatter renders decoded records for the command line.
// Formatters are registered by name (table, json, yaml) and chosen with
// the --output flag.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/artpar/restschema/core/decode"
	"github.com/artpar/restschema/core/schema"
)

// Formatter converts records to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// FormatList formats the records of one resource.
	FormatList(w io.Writer, s *schema.ObjectSchema, records []decode.Record, opts FormatOptions) error

	// FormatRecord formats a single record.
	FormatRecord(w io.Writer, s *schema.ObjectSchema, record decode.Record, opts FormatOptions) error

	// FormatError formats an error.
	FormatError(w io.Writer, err error) error
}

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// Columns specifies which fields to include (nil = all present).
	Columns []string

	// NoHeader disables header row for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (for json).
	Compact bool

	// MaxWidth truncates long values (0 = no limit).
	MaxWidth int
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// Default returns the default formatter.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formatters[r.defaultFmt]
}

// SetDefault sets the default formatter.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; !exists {
		return fmt.Errorf("formatter %q not registered", name)
	}

	r.defaultFmt = name
	return nil
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(f Formatter) error {
	return DefaultRegistry.Register(f)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// Default returns the default formatter from the default registry.
func Default() Formatter {
	return DefaultRegistry.Default()
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}

// columns picks the fields to show: the requested ones, or the declared
// properties present in any record followed by overflow members, sorted.
func columns(s *schema.ObjectSchema, records []decode.Record, requested []string, withExtra bool) []string {
	if len(requested) > 0 {
		return requested
	}

	present := make(map[string]bool)
	for _, r := range records {
		for k := range r.Fields {
			present[k] = true
		}
	}

	var cols []string
	seen := make(map[string]bool)
	if s != nil {
		for _, p := range s.Properties {
			if present[p.Name] {
				cols = append(cols, p.Name)
				seen[p.Name] = true
			}
		}
	}
	// Fields without a schema, or decoded under a different one.
	var rest []string
	for k := range present {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	if withExtra {
		for _, r := range records {
			for k := range r.Extra {
				if !seen[k] && !present[k] {
					rest = append(rest, k)
					seen[k] = true
				}
			}
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// project returns the record restricted to cols, with plain values.
func project(r decode.Record, cols []string) map[string]any {
	if len(cols) == 0 {
		return plainMap(r.Map())
	}
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := r.Get(c); ok {
			out[c] = plain(v)
		}
	}
	return out
}

// plain replaces json.Number with int64 or float64, recursively, so every
// encoder prints numbers as numbers.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(t.String(), 64); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return plainMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

func resourceName(s *schema.ObjectSchema) string {
	if s == nil {
		return ""
	}
	return s.Name
}
