// Package request turns a schema, a method and caller arguments into an
// outbound ports.Request. Nothing here touches the network.
package request

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/artpar/restschema/core/binding"
	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/pkg/apierror"
	"github.com/artpar/restschema/ports"
)

// Options controls request construction.
type Options struct {
	// Body binds create and update payloads.
	Body binding.Options
	// Query binds list, get, delete and action query parameters.
	Query binding.Options
	// PageSize, when positive, is sent as "max" on list requests that
	// declare a max parameter and did not set one.
	PageSize int
}

// DefaultOptions uses strict bodies, permissive queries and the server's page size.
var DefaultOptions = Options{Body: binding.Body, Query: binding.Query}

// verbs maps each method to its HTTP verb.
var verbs = map[schema.MethodKind]string{
	schema.MethodList:   http.MethodGet,
	schema.MethodGet:    http.MethodGet,
	schema.MethodCreate: http.MethodPost,
	schema.MethodUpdate: http.MethodPut,
	schema.MethodDelete: http.MethodDelete,
}

// Build assembles the request for one CRUD method. id is required for get,
// update and delete and ignored otherwise.
func Build(s *schema.ObjectSchema, method schema.MethodKind, id string, args map[string]any, opts Options) (ports.Request, error) {
	verb, ok := verbs[method]
	if !ok || !s.Supports(method) {
		return ports.Request{}, &apierror.UnsupportedMethodError{Object: s.Name, Method: string(method)}
	}

	req := ports.Request{
		Verb:     verb,
		URL:      s.Endpoint,
		Resource: s.Name,
		Method:   string(method),
	}

	switch method {
	case schema.MethodGet, schema.MethodUpdate, schema.MethodDelete:
		if strings.TrimSpace(id) == "" {
			return ports.Request{}, &apierror.MissingIdentifierError{Object: s.Name, Method: string(method)}
		}
		req.URL = ItemURL(s, id)
	}

	switch method {
	case schema.MethodList:
		bound, err := binding.Bind(s.QueryParameters, args, opts.Query)
		if err != nil {
			return ports.Request{}, err
		}
		if opts.PageSize > 0 && declares(s.QueryParameters, "max") {
			if _, set := bound["max"]; !set {
				bound["max"] = opts.PageSize
			}
		}
		req.Query, err = EncodeQuery(bound)
		if err != nil {
			return ports.Request{}, err
		}

	case schema.MethodCreate, schema.MethodUpdate:
		op, _ := s.Operation(method)
		bound, err := binding.BindOperation(op, args, opts.Body)
		if err != nil {
			return ports.Request{}, err
		}
		req.Body = bound

	default:
		// get and delete take no declared parameters; extra filters pass
		// through in permissive mode only.
		bound, err := binding.Bind(nil, args, opts.Query)
		if err != nil {
			return ports.Request{}, err
		}
		req.Query, err = EncodeQuery(bound)
		if err != nil {
			return ports.Request{}, err
		}
	}

	return req, nil
}

// BuildAction assembles a GET to endpoint/path for a custom action.
func BuildAction(s *schema.ObjectSchema, name string, args map[string]any, opts Options) (ports.Request, error) {
	action, ok := s.Action(name)
	if !ok {
		return ports.Request{}, &apierror.UnknownActionError{Object: s.Name, Action: name}
	}

	bound, err := binding.Bind(action.Parameters, args, opts.Query)
	if err != nil {
		return ports.Request{}, err
	}
	if action.Kind == schema.MethodList && opts.PageSize > 0 && declares(action.Parameters, "max") {
		if _, set := bound["max"]; !set {
			bound["max"] = opts.PageSize
		}
	}
	query, err := EncodeQuery(bound)
	if err != nil {
		return ports.Request{}, err
	}

	return ports.Request{
		Verb:     http.MethodGet,
		URL:      s.Endpoint + "/" + strings.Trim(action.Path, "/"),
		Query:    query,
		Resource: s.Name,
		Method:   name,
	}, nil
}

// ItemURL returns the URL of one record, with id path-escaped.
func ItemURL(s *schema.ObjectSchema, id string) string {
	return s.Endpoint + "/" + url.PathEscape(id)
}

// EncodeQuery renders bound parameters as query values. Lists become
// repeated keys and dicts are sent as JSON.
func EncodeQuery(bound map[string]any) (url.Values, error) {
	if len(bound) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(bound))
	for k := range bound {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make(url.Values, len(bound))
	for _, k := range keys {
		v := bound[k]
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				q.Add(k, scalar(rv.Index(i).Interface()))
			}
		case reflect.Map, reflect.Struct:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode query parameter %q: %w", k, err)
			}
			q.Set(k, string(data))
		default:
			q.Set(k, scalar(v))
		}
	}
	return q, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func declares(params []schema.ParamSpec, wire string) bool {
	for _, p := range params {
		if p.WireName == wire {
			return true
		}
	}
	return false
}
