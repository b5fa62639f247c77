package mockplatform

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mock.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_CRUD(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.Insert(ctx, "meeting", map[string]any{"id": "abc", "title": "Standup"}); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := store.Insert(ctx, "meeting", map[string]any{"id": "abc"}); err == nil {
				t.Error("Insert() duplicate id should fail")
			}
			if err := store.Insert(ctx, "meeting", map[string]any{"title": "no id"}); err == nil {
				t.Error("Insert() without id should fail")
			}

			rec, err := store.Get(ctx, "meeting", "abc")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if rec["title"] != "Standup" {
				t.Errorf("title = %v", rec["title"])
			}

			updated, err := store.Update(ctx, "meeting", "abc", map[string]any{"title": "Retro", "id": "ignored"})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if updated["title"] != "Retro" || updated["id"] != "abc" {
				t.Errorf("Update() = %v", updated)
			}

			if err := store.Delete(ctx, "meeting", "abc"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, "meeting", "abc"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
			}
			if err := store.Delete(ctx, "meeting", "abc"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
			}
			if _, err := store.Update(ctx, "meeting", "abc", map[string]any{"title": "x"}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update() missing error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ListPagingAndFilters(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 7; i++ {
				state := "scheduled"
				if i%2 == 1 {
					state = "ended"
				}
				rec := map[string]any{"id": fmt.Sprintf("m%d", i), "state": state, "current": i == 0}
				if err := store.Insert(ctx, "meeting", rec); err != nil {
					t.Fatalf("Insert() error = %v", err)
				}
			}
			// another collection must not leak in
			if err := store.Insert(ctx, "recording", map[string]any{"id": "r0", "state": "scheduled"}); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}

			page, total, err := store.List(ctx, "meeting", ListOptions{Limit: 3, Offset: 3})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != 7 {
				t.Errorf("total = %d, want 7", total)
			}
			if len(page) != 3 || page[0]["id"] != "m3" || page[2]["id"] != "m5" {
				t.Errorf("page = %v", page)
			}

			scheduled, total, err := store.List(ctx, "meeting", ListOptions{Filters: map[string]string{"state": "scheduled"}})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != 4 || len(scheduled) != 4 {
				t.Errorf("scheduled = %d of %d, want 4", len(scheduled), total)
			}

			current, _, err := store.List(ctx, "meeting", ListOptions{Filters: map[string]string{"current": "true"}})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(current) != 1 || current[0]["id"] != "m0" {
				t.Errorf("current = %v", current)
			}

			beyond, total, err := store.List(ctx, "meeting", ListOptions{Limit: 5, Offset: 10})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(beyond) != 0 || total != 7 {
				t.Errorf("beyond = %v, total %d", beyond, total)
			}

			empty, total, err := store.List(ctx, "nothing", ListOptions{})
			if err != nil || len(empty) != 0 || total != 0 {
				t.Errorf("List(unknown) = %v, %d, %v", empty, total, err)
			}
		})
	}
}
