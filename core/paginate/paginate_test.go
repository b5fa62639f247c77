package paginate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/ports"
)

// pagedServer serves pages keyed by URL and counts fetches.
type pagedServer struct {
	pages   map[string]ports.Response
	fetched []string
}

func (s *pagedServer) Do(_ context.Context, req ports.Request) (ports.Response, error) {
	s.fetched = append(s.fetched, req.URL)
	resp, ok := s.pages[req.URL]
	if !ok {
		return ports.Response{}, fmt.Errorf("unexpected fetch of %s", req.URL)
	}
	return resp, nil
}

// newPagedServer builds n pages of size p. Page i links to page i+1,
// except the last.
func newPagedServer(n, p int) *pagedServer {
	s := &pagedServer{pages: map[string]ports.Response{}}
	seq := 0
	for i := 0; i < n; i++ {
		items := make([]string, 0, p)
		for j := 0; j < p; j++ {
			items = append(items, fmt.Sprintf(`{"id":"%d"}`, seq))
			seq++
		}
		headers := http.Header{}
		if i < n-1 {
			headers.Set("Link", fmt.Sprintf(`<https://api.example.com/v1/meetings?cursor=%d>; rel="next"`, i+1))
		}
		s.pages[pageURL(i)] = ports.Response{
			StatusCode: 200,
			Headers:    headers,
			Body:       []byte(`{"items":[` + strings.Join(items, ",") + `]}`),
		}
	}
	return s
}

func pageURL(i int) string {
	if i == 0 {
		return "meetings"
	}
	return fmt.Sprintf("https://api.example.com/v1/meetings?cursor=%d", i)
}

func testSchema(t *testing.T) *schema.ObjectSchema {
	t.Helper()
	obj, err := schema.Load(schema.Definition{
		Object:     "meeting",
		Endpoint:   "meetings",
		Methods:    []schema.MethodKind{schema.MethodList},
		Properties: []schema.PropertySpec{{Name: "id"}},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return obj
}

func first() ports.Request {
	return ports.Request{Verb: http.MethodGet, URL: "meetings", Resource: "meeting", Method: "list"}
}

func TestPager_Exhaustive(t *testing.T) {
	tests := []struct{ pages, size int }{
		{1, 1},
		{1, 5},
		{3, 4},
		{5, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.pages, tt.size), func(t *testing.T) {
			srv := newPagedServer(tt.pages, tt.size)
			p := New(srv, testSchema(t), first(), Options{})

			var ids []string
			for p.Next(context.Background()) {
				ids = append(ids, p.Record().ID())
			}
			if err := p.Err(); err != nil {
				t.Fatalf("Err() = %v", err)
			}

			if len(ids) != tt.pages*tt.size {
				t.Fatalf("got %d records, want %d", len(ids), tt.pages*tt.size)
			}
			for i, id := range ids {
				if id != fmt.Sprint(i) {
					t.Fatalf("ids[%d] = %s, want %d (server order)", i, id, i)
				}
			}
			if len(srv.fetched) != tt.pages {
				t.Errorf("fetched %d pages, want %d", len(srv.fetched), tt.pages)
			}
			if p.Pages() != tt.pages {
				t.Errorf("Pages() = %d, want %d", p.Pages(), tt.pages)
			}

			// exhausted pager stays exhausted without fetching
			if p.Next(context.Background()) {
				t.Error("Next() after exhaustion = true")
			}
			if len(srv.fetched) != tt.pages {
				t.Errorf("extra fetch after exhaustion: %v", srv.fetched)
			}
		})
	}
}

func TestPager_Lazy(t *testing.T) {
	srv := newPagedServer(3, 2)
	p := New(srv, testSchema(t), first(), Options{})

	if len(srv.fetched) != 0 {
		t.Fatalf("New() fetched %v before Next", srv.fetched)
	}

	for i := 0; i < 2; i++ {
		if !p.Next(context.Background()) {
			t.Fatalf("Next() #%d = false", i)
		}
	}
	if len(srv.fetched) != 1 {
		t.Errorf("consuming page one fetched %d pages, want 1", len(srv.fetched))
	}

	if !p.Next(context.Background()) {
		t.Fatal("Next() into page two = false")
	}
	if len(srv.fetched) != 2 {
		t.Errorf("fetched %d pages, want 2", len(srv.fetched))
	}
	if srv.fetched[1] != pageURL(1) {
		t.Errorf("continuation URL = %s, want verbatim %s", srv.fetched[1], pageURL(1))
	}
}

func TestPager_CloseStopsFetching(t *testing.T) {
	srv := newPagedServer(3, 1)
	p := New(srv, testSchema(t), first(), Options{})

	p.Next(context.Background())
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if p.Next(context.Background()) {
		t.Error("Next() after Close = true")
	}
	if len(srv.fetched) != 1 {
		t.Errorf("fetched %d pages, want 1", len(srv.fetched))
	}
}

func TestPager_All(t *testing.T) {
	srv := newPagedServer(3, 2)
	p := New(srv, testSchema(t), first(), Options{})

	count := 0
	for rec, err := range p.All(context.Background()) {
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		if rec.ID() != fmt.Sprint(count) {
			t.Errorf("record %d ID = %s", count, rec.ID())
		}
		count++
		if count == 3 {
			break
		}
	}

	if count != 3 {
		t.Errorf("iterated %d records, want 3", count)
	}
	if len(srv.fetched) != 2 {
		t.Errorf("early break fetched %d pages, want 2", len(srv.fetched))
	}
	if p.Next(context.Background()) {
		t.Error("breaking out of All should close the pager")
	}
}

func TestPager_Collect(t *testing.T) {
	srv := newPagedServer(4, 3)
	p := New(srv, testSchema(t), first(), Options{})

	records, err := p.Collect(context.Background(), 4)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 4 {
		t.Errorf("Collect(4) returned %d records", len(records))
	}
	if len(srv.fetched) != 2 {
		t.Errorf("Collect(4) fetched %d pages, want 2", len(srv.fetched))
	}

	rest, err := p.Collect(context.Background(), 0)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(rest) != 8 {
		t.Errorf("Collect(0) returned %d records, want remaining 8", len(rest))
	}
}

func TestPager_SkipsEmptyPages(t *testing.T) {
	srv := &pagedServer{pages: map[string]ports.Response{
		"meetings": {
			StatusCode: 200,
			Headers:    http.Header{"Link": {`<page2>; rel="next"`}},
			Body:       []byte(`{"items":[]}`),
		},
		"page2": {
			StatusCode: 200,
			Headers:    http.Header{"Link": {`<page1>; rel="prev", <page3>; rel="next"`}},
			Body:       []byte(`{"items":[{"id":"a"}]}`),
		},
		"page3": {StatusCode: 200, Body: []byte(`[]`)},
	}}

	records, err := New(srv, testSchema(t), first(), Options{}).Collect(context.Background(), 0)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 1 || records[0].ID() != "a" {
		t.Errorf("records = %v", records)
	}
	if len(srv.fetched) != 3 {
		t.Errorf("fetched = %v", srv.fetched)
	}
}

func TestPager_EmptyPagesBounded(t *testing.T) {
	endless := func(self bool) Doer {
		return ports.TransportFunc(func(_ context.Context, req ports.Request) (ports.Response, error) {
			next := req.URL + "x"
			if self {
				next = req.URL
			}
			return ports.Response{
				StatusCode: 200,
				Headers:    http.Header{"Link": {"<" + next + `>; rel="next"`}},
				Body:       []byte(`{"items":[]}`),
			}, nil
		})
	}

	tests := []struct {
		name      string
		self      bool
		max       int
		wantPages int
	}{
		{"self link", true, 0, 1},
		{"default limit", false, 0, DefaultMaxEmptyPages},
		{"configured limit", false, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(endless(tt.self), testSchema(t), first(), Options{MaxEmptyPages: tt.max})
			if p.Next(context.Background()) {
				t.Fatal("Next() = true on empty pages")
			}
			if !errors.Is(p.Err(), ErrNoProgress) {
				t.Errorf("Err() = %v, want ErrNoProgress", p.Err())
			}
			if p.Pages() != tt.wantPages {
				t.Errorf("pages = %d, want %d", p.Pages(), tt.wantPages)
			}
		})
	}
}

func TestPager_ErrorMidway(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	doer := ports.TransportFunc(func(_ context.Context, req ports.Request) (ports.Response, error) {
		calls++
		if calls == 1 {
			return ports.Response{
				StatusCode: 200,
				Headers:    http.Header{"Link": {`<next>; rel="next"`}},
				Body:       []byte(`{"items":[{"id":"1"}]}`),
			}, nil
		}
		return ports.Response{}, boom
	})

	p := New(doer, testSchema(t), first(), Options{})
	records, err := p.Collect(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("Collect() error = %v, want boom", err)
	}
	if len(records) != 1 {
		t.Errorf("records before failure = %d, want 1", len(records))
	}
	if p.Next(context.Background()) {
		t.Error("Next() after failure = true")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type pageCounter struct {
	sizes []int
}

func (c *pageCounter) ObserveExchange(string, string, int, time.Duration) {}
func (c *pageCounter) ObserveRetry(string, string)                        {}
func (c *pageCounter) ObservePage(_ string, items int)                    { c.sizes = append(c.sizes, items) }

func TestPager_ObservesPages(t *testing.T) {
	obs := &pageCounter{}
	srv := newPagedServer(2, 3)

	if _, err := New(srv, testSchema(t), first(), Options{Observer: obs}).Collect(context.Background(), 0); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(obs.sizes) != 2 || obs.sizes[0] != 3 || obs.sizes[1] != 3 {
		t.Errorf("observed page sizes = %v", obs.sizes)
	}
}
