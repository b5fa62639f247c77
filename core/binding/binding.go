// Package binding maps caller arguments onto schema parameters.
// It enforces required fields, rejects or passes through unknown ones,
// coerces values to their declared types and applies wire-name renames.
package binding

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/pkg/apierror"
)

// Options controls binding behavior.
type Options struct {
	// Strict rejects arguments the schema does not declare. When false,
	// unknown arguments are passed through unchanged under the caller's key.
	Strict bool
}

// Body is the default for create and update payloads.
var Body = Options{Strict: true}

// Query is the default for query and action parameters, which tolerate
// filters newer than the local schema.
var Query = Options{Strict: false}

// BindOperation binds args against a create or update spec.
func BindOperation(op schema.OperationSpec, args map[string]any, opts Options) (map[string]any, error) {
	return Bind(op.Fields(), args, opts)
}

// Bind validates and normalizes args against params and returns them keyed
// by wire name. Arguments may use either the logical or the wire name.
// A nil value counts as absent. The first problem found is returned.
func Bind(params []schema.ParamSpec, args map[string]any, opts Options) (map[string]any, error) {
	byKey := make(map[string]int, len(params)*2)
	for i, p := range params {
		byKey[p.Name] = i
		byKey[p.WireName] = i
	}

	// Collect supplied values per parameter, in a stable key order so the
	// reported error does not depend on map iteration.
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	supplied := make(map[int]any, len(args))
	suppliedAs := make(map[int]string, len(args))
	out := make(map[string]any, len(args))

	for _, k := range keys {
		v := args[k]
		if v == nil {
			continue
		}
		i, known := byKey[k]
		if !known {
			if opts.Strict {
				return nil, &apierror.UnknownFieldError{Field: k}
			}
			out[k] = v
			continue
		}
		if prev, dup := suppliedAs[i]; dup {
			return nil, &apierror.DuplicateFieldError{Field: prev, Alias: k}
		}
		supplied[i] = v
		suppliedAs[i] = k
	}

	for i, p := range params {
		v, ok := supplied[i]
		if !ok {
			if !p.Optional {
				return nil, &apierror.MissingRequiredFieldError{Field: p.Name}
			}
			if p.Default == nil {
				continue
			}
			v = p.Default
		}

		bound, err := Coerce(p, v)
		if err != nil {
			return nil, err
		}
		out[p.WireName] = bound
	}

	return out, nil
}

// Coerce converts v to the declared type of p.
//
//   - bool accepts truthy and falsy spellings (yes/no, on/off, y/n, "")
//     besides what cast understands
//   - int accepts base-10 strings and integral numbers in range, never
//     truncating or wrapping
//   - string is never converted but rejects structured values
//   - list and dict must already be slices and maps
func Coerce(p schema.ParamSpec, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	mismatch := func() error {
		return &apierror.TypeMismatchError{Field: p.Name, Expected: string(p.Type), Value: v}
	}

	switch p.Type {
	case schema.TypeBool:
		if isStructured(v) {
			return nil, mismatch()
		}
		b, ok := toBool(v)
		if !ok {
			return nil, mismatch()
		}
		return b, nil

	case schema.TypeInt:
		if isStructured(v) {
			return nil, mismatch()
		}
		n, ok := toInt(v)
		if !ok {
			return nil, mismatch()
		}
		return n, nil

	case schema.TypeList:
		if k := reflect.TypeOf(v).Kind(); k != reflect.Slice && k != reflect.Array {
			return nil, mismatch()
		}
		return v, nil

	case schema.TypeDict:
		if reflect.TypeOf(v).Kind() != reflect.Map {
			return nil, mismatch()
		}
		return v, nil

	default:
		if isStructured(v) {
			return nil, mismatch()
		}
		return v, nil
	}
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "on":
			return true, true
		case "no", "n", "off", "":
			return false, true
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	}
	b, err := cast.ToBoolE(v)
	return b, err == nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return intFromInt64(t)
	case uint:
		return intFromUint64(uint64(t))
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return intFromUint64(uint64(t))
	case uint64:
		return intFromUint64(t)
	case float32:
		return intFromFloat(float64(t))
	case float64:
		return intFromFloat(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return intFromInt64(n)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return intFromInt64(n)
	case bool:
		return 0, false
	}
	n, err := cast.ToIntE(v)
	return n, err == nil
}

func intFromInt64(n int64) (int, bool) {
	if n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func intFromUint64(n uint64) (int, bool) {
	if n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

// intFromFloat accepts whole numbers only. 2^63 itself is out of range.
func intFromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return intFromInt64(int64(f))
}

// isStructured reports whether v is a collection rather than a scalar.
func isStructured(v any) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}
