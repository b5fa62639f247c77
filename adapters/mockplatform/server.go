// Package mockplatform serves any set of object schemas as a REST platform.
//
// Collections answer list, get, create, update and delete at the paths the
// schemas declare, paginate with RFC 5988 Link headers and validate payloads
// with the same binder the client uses. Custom actions serve records seeded
// with Seed. It exists for tests and the "mock" command.
package mockplatform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artpar/restschema/adapters/metrics"
	"github.com/artpar/restschema/core/binding"
	"github.com/artpar/restschema/core/schema"
)

// DefaultPageSize applies when a list request does not send max.
const DefaultPageSize = 10

// MaxPageSize caps max.
const MaxPageSize = 100

// Schemas lists the schemas to serve. *registry.Registry satisfies it.
type Schemas interface {
	List() []*schema.ObjectSchema
}

// Config configures a Server.
type Config struct {
	Store    Store
	Logger   zerolog.Logger
	Metrics  *metrics.Collector
	PageSize int
	// MetricsPath mounts the Prometheus handler when Metrics is set.
	MetricsPath string
}

// Server is the mock platform.
type Server struct {
	store    Store
	logger   zerolog.Logger
	metrics  *metrics.Collector
	pageSize int
	skipPath string
	router   chi.Router
	newID    func() string
}

// New creates a Server for every schema in schemas.
func New(schemas Schemas, cfg Config) *Server {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	s := &Server{
		store:    cfg.Store,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		pageSize: cfg.PageSize,
		skipPath: cfg.MetricsPath,
		newID:    uuid.NewString,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	for _, obj := range schemas.List() {
		s.mount(r, obj)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "The requested resource could not be found.")
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Seed stores records in a collection. collection is a schema name, or
// "name/action" for a custom action. Records without an id get one.
func (s *Server) Seed(ctx context.Context, collection string, records ...map[string]any) error {
	for _, rec := range records {
		rec = copyRecord(rec)
		if id, _ := rec["id"].(string); id == "" {
			rec["id"] = s.newID()
		}
		if err := s.store.Insert(ctx, collection, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) mount(r chi.Router, obj *schema.ObjectSchema) {
	base := "/" + obj.Endpoint

	for _, a := range obj.Actions {
		r.Get(base+"/"+strings.Trim(a.Path, "/"), s.handleAction(obj, a))
	}

	if obj.Supports(schema.MethodList) {
		r.Get(base, s.handleList(obj))
	}
	if obj.Supports(schema.MethodCreate) {
		r.Post(base, s.handleCreate(obj))
	}
	if obj.Supports(schema.MethodGet) {
		r.Get(base+"/{id}", s.handleGet(obj))
	}
	if obj.Supports(schema.MethodUpdate) {
		r.Put(base+"/{id}", s.handleUpdate(obj))
	}
	if obj.Supports(schema.MethodDelete) {
		r.Delete(base+"/{id}", s.handleDelete(obj))
	}
}

func (s *Server) handleList(obj *schema.ObjectSchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, r, obj.Name, filtersFor(obj, r.URL.Query()))
	}
}

func (s *Server) handleGet(obj *schema.ObjectSchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.store.Get(r.Context(), obj.Name, chi.URLParam(r, "id"))
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleCreate(obj *schema.ObjectSchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		bound, err := binding.BindOperation(obj.Create, body, binding.Body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		rec := copyRecord(bound)
		rec["id"] = s.newID()
		if _, declared := obj.Property("created"); declared {
			rec["created"] = time.Now().UTC().Format(time.RFC3339)
		}
		if err := s.store.Insert(r.Context(), obj.Name, rec); err != nil {
			s.storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleUpdate(obj *schema.ObjectSchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		bound, err := binding.BindOperation(obj.Update, body, binding.Body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rec, err := s.store.Update(r.Context(), obj.Name, chi.URLParam(r, "id"), bound)
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleDelete(obj *schema.ObjectSchema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Delete(r.Context(), obj.Name, chi.URLParam(r, "id")); err != nil {
			s.storeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleAction(obj *schema.ObjectSchema, a schema.Action) http.HandlerFunc {
	collection := obj.Name + "/" + a.Name
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if _, err := binding.Bind(a.Parameters, queryArgs(query), binding.Query); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filters := map[string]string{}
		for _, p := range a.Parameters {
			if !p.Optional {
				filters[p.WireName] = query.Get(p.WireName)
			}
		}

		if a.Kind == schema.MethodList {
			s.servePage(w, r, collection, filters)
			return
		}

		records, _, err := s.store.List(r.Context(), collection, ListOptions{Limit: 1, Filters: filters})
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		if len(records) == 0 {
			s.storeError(w, r, ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, records[0])
	}
}

// servePage writes one page of collection, linking to the next one when
// more records remain. The cursor is the offset of the next page.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, collection string, filters map[string]string) {
	query := r.URL.Query()

	limit := s.pageSize
	if v := query.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid max %q", v))
			return
		}
		limit = min(n, MaxPageSize)
	}
	offset := 0
	if v := query.Get("cursor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid cursor %q", v))
			return
		}
		offset = n
	}

	records, total, err := s.store.List(r.Context(), collection, ListOptions{
		Limit:   limit,
		Offset:  offset,
		Filters: filters,
	})
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if records == nil {
		records = []map[string]any{}
	}

	if offset+len(records) < total {
		next := *r.URL
		next.Scheme = scheme(r)
		next.Host = r.Host
		q := next.Query()
		q.Set("cursor", strconv.Itoa(offset+len(records)))
		q.Set("max", strconv.Itoa(limit))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next.String()))
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "The requested resource could not be found.")
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("store failure")
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		if id := r.Header.Get("TrackingID"); id != "" {
			ww.Header().Set("TrackingID", id)
		}
		next.ServeHTTP(ww, r)

		if s.metrics != nil && r.URL.Path != s.skipPath {
			s.metrics.ObserveServed(r.Method, resourceLabel(r), ww.Status(), time.Since(start))
		}

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// resourceLabel keeps metric cardinality bounded by dropping record ids.
func resourceLabel(r *http.Request) string {
	path := strings.Trim(r.URL.Path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

// filtersFor turns query parameters that name declared properties into
// exact-match filters. Paging and range parameters are not properties.
func filtersFor(obj *schema.ObjectSchema, query url.Values) map[string]string {
	filters := map[string]string{}
	for k := range query {
		if k == "max" || k == "cursor" || k == "id" {
			continue
		}
		if _, declared := obj.Property(k); declared {
			filters[k] = query.Get(k)
		}
	}
	return filters
}

func queryArgs(query url.Values) map[string]any {
	args := make(map[string]any, len(query))
	for k, vs := range query {
		if len(vs) == 1 {
			args[k] = vs[0]
		} else {
			args[k] = vs
		}
	}
	return args
}

func readBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return body, nil
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]any{
		"message":    message,
		"trackingId": r.Header.Get("TrackingID"),
	})
}
