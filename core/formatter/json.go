package formatter

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/artpar/restschema/core/decode"
	"github.com/artpar/restschema/core/schema"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatList formats a list of records as JSON. Without --columns every
// member the platform sent is kept, overflow included.
func (f *JSONFormatter) FormatList(w io.Writer, s *schema.ObjectSchema, records []decode.Record, opts FormatOptions) error {
	items := make([]map[string]any, len(records))
	for i, r := range records {
		items[i] = project(r, opts.Columns)
	}

	output := map[string]any{
		"resource": resourceName(s),
		"count":    len(items),
		"items":    items,
	}
	return f.encode(w, output, opts.Compact)
}

// FormatRecord formats a single record as JSON.
func (f *JSONFormatter) FormatRecord(w io.Writer, s *schema.ObjectSchema, record decode.Record, opts FormatOptions) error {
	output := map[string]any{
		"resource": resourceName(s),
		"data":     project(record, opts.Columns),
	}
	return f.encode(w, output, opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
