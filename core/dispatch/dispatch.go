// Package dispatch exposes the per-resource operations: list, get, create,
// update and delete, plus custom actions. Each call binds arguments,
// builds the request, runs it through the exchange and decodes the result.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/restschema/core/decode"
	"github.com/artpar/restschema/core/paginate"
	"github.com/artpar/restschema/core/request"
	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/pkg/apierror"
	"github.com/artpar/restschema/ports"
)

// Schemas resolves a resource name or endpoint to its schema.
// *registry.Registry satisfies it.
type Schemas interface {
	Resolve(ref string) (*schema.ObjectSchema, bool)
}

// Options configures a Dispatcher.
type Options struct {
	Request  request.Options
	ItemsKey string
	Observer ports.Observer
	Logger   zerolog.Logger
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Request:  request.DefaultOptions,
		ItemsKey: decode.DefaultItemsKey,
		Logger:   zerolog.Nop(),
	}
}

// Dispatcher runs operations by resource name. It keeps no per-call state.
type Dispatcher struct {
	schemas Schemas
	client  paginate.Doer
	opts    Options
}

// New creates a Dispatcher. client is typically an *exchange.Client.
func New(schemas Schemas, client paginate.Doer, opts Options) *Dispatcher {
	return &Dispatcher{schemas: schemas, client: client, opts: opts}
}

// Schema returns the schema registered under resource.
func (d *Dispatcher) Schema(resource string) (*schema.ObjectSchema, error) {
	s, ok := d.schemas.Resolve(resource)
	if !ok {
		return nil, &apierror.UnknownResourceError{Name: resource}
	}
	return s, nil
}

// List returns a lazy sequence over the collection. Argument errors are
// returned immediately; nothing is fetched until the Pager is advanced.
func (d *Dispatcher) List(ctx context.Context, resource string, args map[string]any) (*paginate.Pager, error) {
	s, err := d.Schema(resource)
	if err != nil {
		return nil, err
	}
	req, err := request.Build(s, schema.MethodList, "", args, d.opts.Request)
	if err != nil {
		return nil, err
	}
	return d.pager(s, req), nil
}

// Get fetches one record. A missing record is *apierror.NotFoundError.
func (d *Dispatcher) Get(ctx context.Context, resource, id string) (decode.Record, error) {
	return d.single(ctx, resource, schema.MethodGet, id, nil)
}

// Create posts a new record and returns what the platform stored.
func (d *Dispatcher) Create(ctx context.Context, resource string, args map[string]any) (decode.Record, error) {
	return d.single(ctx, resource, schema.MethodCreate, "", args)
}

// Update replaces a record's fields and returns the updated record.
func (d *Dispatcher) Update(ctx context.Context, resource, id string, args map[string]any) (decode.Record, error) {
	return d.single(ctx, resource, schema.MethodUpdate, id, args)
}

// Delete removes a record. Deleting an id that no longer exists is a
// *apierror.NotFoundError unless the platform answers 410 Gone.
func (d *Dispatcher) Delete(ctx context.Context, resource, id string) error {
	s, err := d.Schema(resource)
	if err != nil {
		return err
	}
	req, err := request.Build(s, schema.MethodDelete, id, nil, d.opts.Request)
	if err != nil {
		return err
	}
	if _, err := d.client.Do(ctx, req); err != nil {
		return err
	}
	d.opts.Logger.Debug().Str("resource", s.Name).Str("id", id).Msg("deleted")
	return nil
}

// ListAction runs a paginated custom action.
func (d *Dispatcher) ListAction(ctx context.Context, resource, action string, args map[string]any) (*paginate.Pager, error) {
	s, req, err := d.action(resource, action, schema.MethodList, args)
	if err != nil {
		return nil, err
	}
	return d.pager(s, req), nil
}

// GetAction runs a single-record custom action.
func (d *Dispatcher) GetAction(ctx context.Context, resource, action string, args map[string]any) (decode.Record, error) {
	s, req, err := d.action(resource, action, schema.MethodGet, args)
	if err != nil {
		return decode.Record{}, err
	}
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return decode.Record{}, err
	}
	return decode.DecodeBody(s, resp.Body)
}

func (d *Dispatcher) action(resource, name string, kind schema.MethodKind, args map[string]any) (*schema.ObjectSchema, ports.Request, error) {
	s, err := d.Schema(resource)
	if err != nil {
		return nil, ports.Request{}, err
	}
	a, ok := s.Action(name)
	if !ok {
		return nil, ports.Request{}, &apierror.UnknownActionError{Object: s.Name, Action: name}
	}
	if a.Kind != kind {
		return nil, ports.Request{}, &apierror.UnsupportedMethodError{Object: s.Name + "." + name, Method: string(kind)}
	}
	req, err := request.BuildAction(s, name, args, d.opts.Request)
	if err != nil {
		return nil, ports.Request{}, err
	}
	return s, req, nil
}

func (d *Dispatcher) single(ctx context.Context, resource string, method schema.MethodKind, id string, args map[string]any) (decode.Record, error) {
	s, err := d.Schema(resource)
	if err != nil {
		return decode.Record{}, err
	}
	req, err := request.Build(s, method, id, args, d.opts.Request)
	if err != nil {
		return decode.Record{}, err
	}
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return decode.Record{}, err
	}
	return decode.DecodeBody(s, resp.Body)
}

func (d *Dispatcher) pager(s *schema.ObjectSchema, req ports.Request) *paginate.Pager {
	return paginate.New(d.client, s, req, paginate.Options{
		ItemsKey: d.opts.ItemsKey,
		Observer: d.opts.Observer,
	})
}
