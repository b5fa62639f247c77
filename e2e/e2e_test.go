// Package e2e exercises the client against the mock platform over real
// HTTP: schemas, binding, pagination, retries and persistence together.
package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/artpar/restschema/adapters/clock"
	"github.com/artpar/restschema/bootstrap"
	"github.com/artpar/restschema/config"
	"github.com/artpar/restschema/pkg/apierror"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Platform.AccessToken = "e2e-token"
	return &cfg
}

// startMock serves a mock platform on a free port until the test ends.
func startMock(t *testing.T, cfg *config.Config) (*bootstrap.Mock, string) {
	t.Helper()
	mock, err := bootstrap.NewMock(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mock.Serve(ctx, l) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("mock shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("mock did not stop")
		}
	})
	return mock, "http://" + l.Addr().String()
}

func newClient(t *testing.T, cfg *config.Config, baseURL string, opts bootstrap.Options) *bootstrap.App {
	t.Helper()
	c := *cfg
	c.Platform.BaseURL = baseURL
	app, err := bootstrap.New(&c, zerolog.Nop(), opts)
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	return app
}

// TestE2E_MeetingLifecycle walks a meeting through every verb.
func TestE2E_MeetingLifecycle(t *testing.T) {
	cfg := testConfig()
	_, baseURL := startMock(t, cfg)
	app := newClient(t, cfg, baseURL, bootstrap.Options{})
	ctx := context.Background()

	created, err := app.Dispatcher.Create(ctx, "meeting", map[string]any{
		"title":         "Planning",
		"start":         "2024-03-01T10:00:00Z",
		"end":           "2024-03-01T11:00:00Z",
		"publicMeeting": "true",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.ID()
	if id == "" {
		t.Fatal("created meeting has no id")
	}
	if !created.Bool("publicMeeting") {
		t.Error("publicMeeting not coerced to true")
	}

	got, err := app.Dispatcher.Get(ctx, "meetings", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.String("title") != "Planning" {
		t.Errorf("title = %q", got.String("title"))
	}
	if start, ok := got.Time("start"); !ok || start.Hour() != 10 {
		t.Errorf("start = %v, %v", start, ok)
	}

	updated, err := app.Dispatcher.Update(ctx, "meeting", id, map[string]any{
		"title":    "Planning (moved)",
		"password": "s3cret",
		"start":    "2024-03-02T10:00:00Z",
		"end":      "2024-03-02T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.String("title") != "Planning (moved)" {
		t.Errorf("updated title = %q", updated.String("title"))
	}

	pager, err := app.Dispatcher.List(ctx, "meeting", nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	all, err := pager.Collect(ctx, 0)
	if err != nil || len(all) != 1 || all[0].ID() != id {
		t.Fatalf("List = %v, %v", all, err)
	}

	if err := app.Dispatcher.Delete(ctx, "meeting", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := app.Dispatcher.Get(ctx, "meeting", id); !apierror.IsNotFound(err) {
		t.Errorf("Get after delete error = %v, want not found", err)
	}

	if got := testutil.ToFloat64(app.Metrics.ExchangesTotal.WithLabelValues("meeting", "create", "2xx")); got != 1 {
		t.Errorf("create exchanges = %v, want 1", got)
	}
}

// TestE2E_InputErrorsNeverReachThePlatform checks that binding failures are
// raised before any request is sent.
func TestE2E_InputErrorsNeverReachThePlatform(t *testing.T) {
	cfg := testConfig()
	var calls atomic.Int32
	mock, err := bootstrap.NewMock(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mock.Platform.ServeHTTP(w, r)
	}))
	defer srv.Close()

	app := newClient(t, cfg, srv.URL, bootstrap.Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"missing required", func() error {
			_, err := app.Dispatcher.Create(ctx, "meeting", map[string]any{"title": "x", "start": "s"})
			return err
		}},
		{"unknown body field", func() error {
			_, err := app.Dispatcher.Create(ctx, "meeting", map[string]any{"title": "x", "start": "s", "end": "e", "colour": "red"})
			return err
		}},
		{"bad int", func() error {
			_, err := app.Dispatcher.List(ctx, "meeting", map[string]any{"max": "many"})
			return err
		}},
		{"unsupported method", func() error {
			_, err := app.Dispatcher.Create(ctx, "recording", map[string]any{})
			return err
		}},
		{"missing id", func() error {
			_, err := app.Dispatcher.Get(ctx, "meeting", "")
			return err
		}},
		{"unknown resource", func() error {
			_, err := app.Dispatcher.Get(ctx, "rooms", "r1")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("platform calls = %d, want 0", calls.Load())
	}
}

// TestE2E_PaginationAcrossPages lists 25 meetings through Link headers.
func TestE2E_PaginationAcrossPages(t *testing.T) {
	cfg := testConfig()
	mock, baseURL := startMock(t, cfg)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		state := "scheduled"
		if i%5 == 0 {
			state = "ended"
		}
		err := mock.Platform.Seed(ctx, "meeting", map[string]any{
			"id":    fmt.Sprintf("m%02d", i),
			"title": fmt.Sprintf("Meeting %d", i),
			"state": state,
		})
		if err != nil {
			t.Fatalf("Seed: %v", err)
		}
	}

	tests := []struct {
		name      string
		pageSize  int
		args      map[string]any
		wantItems int
		wantPages int
	}{
		{"platform default page size", 0, nil, 25, 3},
		{"configured page size", 7, nil, 25, 4},
		{"explicit max wins", 7, map[string]any{"max": 20}, 25, 2},
		{"filter carried to every page", 0, map[string]any{"state": "scheduled", "max": 5}, 20, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			c.Pagination.PageSize = tt.pageSize
			app := newClient(t, &c, baseURL, bootstrap.Options{})

			pager, err := app.Dispatcher.List(ctx, "meeting", tt.args)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			seen := make(map[string]bool)
			for rec, err := range pager.All(ctx) {
				if err != nil {
					t.Fatalf("page error: %v", err)
				}
				if seen[rec.ID()] {
					t.Errorf("record %s returned twice", rec.ID())
				}
				seen[rec.ID()] = true
			}
			if len(seen) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(seen), tt.wantItems)
			}
			if pager.Pages() != tt.wantPages {
				t.Errorf("pages = %d, want %d", pager.Pages(), tt.wantPages)
			}
		})
	}
}

// TestE2E_EarlyStopFetchesNoMorePages checks that a limit stops the pager.
func TestE2E_EarlyStopFetchesNoMorePages(t *testing.T) {
	cfg := testConfig()
	mock, baseURL := startMock(t, cfg)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		mock.Platform.Seed(ctx, "meeting", map[string]any{"id": fmt.Sprintf("m%02d", i)})
	}

	app := newClient(t, cfg, baseURL, bootstrap.Options{})
	pager, err := app.Dispatcher.List(ctx, "meeting", nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	recs, err := pager.Collect(ctx, 12)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	pager.Close()
	if len(recs) != 12 || pager.Pages() != 2 {
		t.Errorf("records = %d pages = %d, want 12 and 2", len(recs), pager.Pages())
	}
	if pager.Next(ctx) {
		t.Error("Next after Close returned true")
	}
}

// TestE2E_RecordingReportActions calls both custom actions.
func TestE2E_RecordingReportActions(t *testing.T) {
	cfg := testConfig()
	mock, baseURL := startMock(t, cfg)
	ctx := context.Background()

	var summaries []map[string]any
	for i := 0; i < 12; i++ {
		summaries = append(summaries, map[string]any{
			"recordingId": fmt.Sprintf("r%02d", i),
			"topic":       "Weekly sync",
			"viewCount":   i,
		})
	}
	if err := mock.Platform.Seed(ctx, "recordingReport/accessSummary", summaries...); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.Platform.Seed(ctx, "recordingReport/accessDetail",
		map[string]any{"recordingId": "r03", "email": "viewer@example.com", "viewed": true, "downloaded": false},
	); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	app := newClient(t, cfg, baseURL, bootstrap.Options{})

	pager, err := app.Dispatcher.ListAction(ctx, "recordingReport", "accessSummary", map[string]any{"from_": "2024-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("ListAction: %v", err)
	}
	recs, err := pager.Collect(ctx, 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(recs) != 12 || pager.Pages() != 2 {
		t.Errorf("summaries = %d pages = %d, want 12 and 2", len(recs), pager.Pages())
	}
	if recs[0].Resource != "recording_report" {
		t.Errorf("Resource = %q, want recording_report", recs[0].Resource)
	}

	detail, err := app.Dispatcher.GetAction(ctx, "recordingReport", "accessDetail", map[string]any{"recordingId": "r03"})
	if err != nil {
		t.Fatalf("GetAction: %v", err)
	}
	if detail.String("email") != "viewer@example.com" || !detail.Bool("viewed") {
		t.Errorf("detail = %v", detail.Map())
	}

	if _, err := app.Dispatcher.GetAction(ctx, "recordingReport", "accessDetail", nil); err == nil {
		t.Error("accessDetail without recordingId should fail before the request")
	}
	if _, err := app.Dispatcher.ListAction(ctx, "recordingReport", "accessDetail", nil); err == nil {
		t.Error("accessDetail is a get action")
	}
}

// TestE2E_RetryHonoursRetryAfter throttles the first two listings.
func TestE2E_RetryHonoursRetryAfter(t *testing.T) {
	cfg := testConfig()
	mock, err := bootstrap.NewMock(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	var throttled atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && throttled.Add(1) <= 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		mock.Platform.ServeHTTP(w, r)
	}))
	defer srv.Close()

	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	app := newClient(t, cfg, srv.URL, bootstrap.Options{Clock: fake})
	ctx := context.Background()

	pager, err := app.Dispatcher.List(ctx, "meeting", nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := pager.Collect(ctx, 0); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	slept := fake.Slept()
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != time.Second {
		t.Errorf("slept = %v, want [1s 1s]", slept)
	}
	if got := testutil.ToFloat64(app.Metrics.RetriesTotal.WithLabelValues("meeting", "list")); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
}

// TestE2E_RetryGivesUp exhausts the attempts on a failing platform.
func TestE2E_RetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retry.MaxAttempts = 3
	fake := clock.NewFake(time.Now())
	app := newClient(t, cfg, srv.URL, bootstrap.Options{Clock: fake})

	_, err := app.Dispatcher.Get(context.Background(), "meeting", "m1")
	if !apierror.IsTransport(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if calls.Load() != 3 || len(fake.Slept()) != 2 {
		t.Errorf("calls = %d slept = %v", calls.Load(), fake.Slept())
	}

	// A 502 may hide an applied POST: one attempt only.
	calls.Store(0)
	_, err = app.Dispatcher.Create(context.Background(), "meeting", map[string]any{"title": "t", "start": "s", "end": "e"})
	if !apierror.IsTransport(err) || calls.Load() != 1 {
		t.Errorf("create calls = %d err = %v, want 1 call and a transport error", calls.Load(), err)
	}
}

// TestE2E_SQLitePersistence restarts the mock on the same database.
func TestE2E_SQLitePersistence(t *testing.T) {
	cfg := testConfig()
	cfg.Mock.DSN = filepath.Join(t.TempDir(), "mock.db")
	ctx := context.Background()

	var id string
	t.Run("Phase1_Create", func(t *testing.T) {
		_, baseURL := startMock(t, cfg)
		app := newClient(t, cfg, baseURL, bootstrap.Options{})
		rec, err := app.Dispatcher.Create(ctx, "meeting", map[string]any{
			"title": "Persisted",
			"start": "2024-05-01T08:00:00Z",
			"end":   "2024-05-01T09:00:00Z",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		id = rec.ID()
	})

	t.Run("Phase2_ReadAfterRestart", func(t *testing.T) {
		if id == "" {
			t.Skip("phase 1 failed")
		}
		_, baseURL := startMock(t, cfg)
		app := newClient(t, cfg, baseURL, bootstrap.Options{})
		rec, err := app.Dispatcher.Get(ctx, "meeting", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.String("title") != "Persisted" {
			t.Errorf("title = %q", rec.String("title"))
		}
	})
}
