// Package decode maps raw JSON payloads onto records described by a schema.
//
// Declared properties are copied into Record.Fields without type checks.
// Anything else the platform sends is kept in Record.Extra so fields newer
// than the local schema stay reachable.
package decode

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/artpar/restschema/core/schema"
)

// DefaultItemsKey is the member holding the records of a list page.
const DefaultItemsKey = "items"

// Record is one decoded resource instance.
type Record struct {
	// Resource is the schema's object type.
	Resource string
	// Fields holds declared properties that were present in the payload.
	Fields map[string]any
	// Extra is the overflow bag for undeclared members.
	Extra map[string]any
}

// Decode splits raw into declared fields and overflow.
func Decode(s *schema.ObjectSchema, raw map[string]any) Record {
	rec := Record{
		Resource: s.ObjectType,
		Fields:   make(map[string]any, len(s.Properties)),
		Extra:    map[string]any{},
	}
	for k, v := range raw {
		if _, declared := s.Property(k); declared {
			rec.Fields[k] = v
		} else {
			rec.Extra[k] = v
		}
	}
	return rec
}

// DecodeBody decodes a single-object response body. An empty body yields
// an empty record.
func DecodeBody(s *schema.ObjectSchema, body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Decode(s, nil), nil
	}
	var raw map[string]any
	if err := unmarshal(body, &raw); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", s.Name, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return Decode(s, raw), nil
}

// DecodePage decodes a list page. The body is either an object whose
// itemsKey member is an array, or a bare array.
func DecodePage(s *schema.ObjectSchema, body []byte, itemsKey string) ([]Record, error) {
	if itemsKey == "" {
		itemsKey = DefaultItemsKey
	}

	var items []map[string]any
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return nil, nil
	case trimmed[0] == '[':
		if err := unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode %s page: %w", s.Name, err)
		}
	default:
		var envelope map[string]json.RawMessage
		if err := unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode %s page: %w", s.Name, err)
		}
		member, ok := envelope[itemsKey]
		if !ok {
			return nil, fmt.Errorf("decode %s page: no %q member", s.Name, itemsKey)
		}
		if err := unmarshal(member, &items); err != nil {
			return nil, fmt.Errorf("decode %s page %q: %w", s.Name, itemsKey, err)
		}
	}

	records := make([]Record, 0, len(items))
	for _, raw := range items {
		records = append(records, Decode(s, raw))
	}
	return records, nil
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// ID returns the record identity.
func (r Record) ID() string {
	return r.String("id")
}

// Get returns a declared field or, failing that, an overflow member.
func (r Record) Get(name string) (any, bool) {
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	v, ok := r.Extra[name]
	return v, ok
}

// String returns name as a string, or "" when absent or not scalar.
func (r Record) String(name string) string {
	v, ok := r.Get(name)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// Bool returns name as a bool, false when absent or unparseable.
func (r Record) Bool(name string) bool {
	v, ok := r.Get(name)
	if !ok {
		return false
	}
	b, _ := cast.ToBoolE(v)
	return b
}

// Int returns name as an int, 0 when absent or unparseable.
func (r Record) Int(name string) int {
	v, ok := r.Get(name)
	if !ok {
		return 0
	}
	if n, isNum := v.(json.Number); isNum {
		i, err := strconv.ParseInt(n.String(), 10, 0)
		if err != nil {
			f, _ := strconv.ParseFloat(n.String(), 64)
			return int(f)
		}
		return int(i)
	}
	i, _ := cast.ToIntE(v)
	return i
}

// Time parses name as a timestamp. Any layout dateparse recognizes is
// accepted; the zero time and false are returned otherwise.
func (r Record) Time(name string) (time.Time, bool) {
	s := r.String(name)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Decode copies the record into out, a pointer to a struct tagged with
// `mapstructure` or matching field names. Overflow members take part too.
func (r Record) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(r.Map())
}

// numberHook turns json.Number into a plain numeric value mapstructure can widen.
func numberHook(_ reflect.Type, _ reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	if f, err := n.Float64(); err == nil {
		return f, nil
	}
	return n.String(), nil
}

// Map merges overflow and declared fields into one map. Declared fields win.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Fields)+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	for k, v := range r.Fields {
		out[k] = v
	}
	return out
}

// MarshalJSON renders the record as the platform sent it.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
