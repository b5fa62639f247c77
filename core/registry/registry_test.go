package registry

import (
	"errors"
	"testing"

	"github.com/artpar/restschema/core/schema"
)

// Helper function to create a simple test schema
func makeTestSchema(t *testing.T, name, endpoint string) *schema.ObjectSchema {
	t.Helper()
	obj, err := schema.Load(schema.Definition{
		Object:     name,
		Endpoint:   endpoint,
		Methods:    []schema.MethodKind{schema.MethodList, schema.MethodGet},
		Properties: []schema.PropertySpec{{Name: "id"}, {Name: "title"}},
	})
	if err != nil {
		t.Fatalf("Load(%s) error = %v", name, err)
	}
	return obj
}

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("New() returned nil")
	}
	if r.schemas == nil {
		t.Error("schemas map not initialized")
	}
	if r.endpoints == nil {
		t.Error("endpoints map not initialized")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := New()

	if err := r.Register(makeTestSchema(t, "meeting", "meetings")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	obj, ok := r.Get("meeting")
	if !ok {
		t.Fatal("Get() should find registered schema")
	}
	if obj.Endpoint != "meetings" {
		t.Errorf("Get().Endpoint = %s, want meetings", obj.Endpoint)
	}
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := New()

	if err := r.Register(makeTestSchema(t, "meeting", "meetings")); err != nil {
		t.Fatalf("First Register() error = %v", err)
	}
	if err := r.Register(makeTestSchema(t, "meeting", "meetings2")); err == nil {
		t.Error("Second Register() should fail with duplicate name")
	}
}

func TestRegistry_Register_EndpointConflict(t *testing.T) {
	r := New()

	if err := r.Register(makeTestSchema(t, "meeting", "meetings")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := r.Register(makeTestSchema(t, "meetingCopy", "meetings"))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Register() error = %v, want *ConflictError", err)
	}
	if conflict.Endpoint != "meetings" {
		t.Errorf("conflict.Endpoint = %q, want meetings", conflict.Endpoint)
	}
	if len(conflict.Claims) != 2 {
		t.Errorf("conflict.Claims = %v, want two claims", conflict.Claims)
	}
}

func TestRegistry_Register_Nil(t *testing.T) {
	if err := New().Register(nil); err == nil {
		t.Error("Register(nil) should fail")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()
	if err := r.Register(makeTestSchema(t, "meeting", "meetings")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Unregister("meeting"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	if _, ok := r.Get("meeting"); ok {
		t.Error("Get() should not find unregistered schema")
	}
	if _, ok := r.Resolve("meetings"); ok {
		t.Error("Resolve() should not find endpoint of unregistered schema")
	}

	// endpoint is free again
	if err := r.Register(makeTestSchema(t, "meeting2", "meetings")); err != nil {
		t.Errorf("Register() after Unregister error = %v", err)
	}
}

func TestRegistry_Unregister_NotFound(t *testing.T) {
	if err := New().Unregister("nonexistent"); err == nil {
		t.Error("Unregister() should fail for non-existent schema")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewWith(makeTestSchema(t, "meeting", "meetings"))
	if err != nil {
		t.Fatalf("NewWith() error = %v", err)
	}

	tests := []struct {
		ref  string
		want bool
	}{
		{"meeting", true},
		{"meetings", true},
		{"/meetings/", true},
		{"rooms", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			obj, ok := r.Resolve(tt.ref)
			if ok != tt.want {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.ref, ok, tt.want)
			}
			if ok && obj.Name != "meeting" {
				t.Errorf("Resolve(%q).Name = %q, want meeting", tt.ref, obj.Name)
			}
		})
	}
}

func TestRegistry_List(t *testing.T) {
	r := New()

	for _, name := range []string{"room", "meeting", "recording"} {
		if err := r.Register(makeTestSchema(t, name, name+"s")); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d schemas, want 3", len(list))
	}

	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Error("List() should be sorted by name")
		}
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if all := r.All(); len(all) != 3 {
		t.Errorf("All() returned %d schemas, want 3", len(all))
	}
}

func TestNewWith_Conflict(t *testing.T) {
	_, err := NewWith(
		makeTestSchema(t, "meeting", "meetings"),
		makeTestSchema(t, "meeting", "other"),
	)
	if err == nil {
		t.Error("NewWith() should fail on duplicate names")
	}
}
