package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/artpar/restschema/core/schema"
	"github.com/artpar/restschema/schemas"
)

// declarations parses src and returns type names and methods by receiver.
func declarations(t *testing.T, src []byte) (string, map[string]bool, map[string][]string) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "gen.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, src)
	}

	types := make(map[string]bool)
	methods := make(map[string][]string)
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					types[ts.Name.Name] = true
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil {
				methods[""] = append(methods[""], d.Name.Name)
				continue
			}
			recv := d.Recv.List[0].Type
			if star, ok := recv.(*ast.StarExpr); ok {
				recv = star.X
			}
			name := recv.(*ast.Ident).Name
			methods[name] = append(methods[name], d.Name.Name)
		}
	}
	return f.Name.Name, types, methods
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func mustParse(t *testing.T, src string) *schema.ObjectSchema {
	t.Helper()
	s, err := schema.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return s
}

func TestGenerate_Builtin(t *testing.T) {
	builtin, err := schemas.Builtin()
	if err != nil {
		t.Fatalf("Builtin() error = %v", err)
	}
	src, err := Generate("webex", builtin)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	pkg, types, methods := declarations(t, src)
	if pkg != "webex" {
		t.Errorf("package = %s, want webex", pkg)
	}
	for _, typ := range []string{"Meeting", "MeetingAPI", "Recording", "RecordingAPI", "RecordingReport", "RecordingReportAPI"} {
		if !types[typ] {
			t.Errorf("type %s not generated", typ)
		}
	}

	tests := []struct {
		recv    string
		want    []string
		notWant []string
	}{
		{"Meeting", []string{"ID", "Title", "SiteURL", "DialInIPAddress", "PublicMeeting", "JoinBeforeHostMinutes", "IntegrationTags", "Telephony", "StartAt", "EndAt"}, []string{"ReminderAt"}},
		{"MeetingAPI", []string{"List", "Get", "Create", "Update", "Delete"}, nil},
		{"Recording", []string{"ID", "DownloadURL", "CreateAt", "TimeRecordedAt", "ShareToMe"}, nil},
		{"RecordingAPI", []string{"List", "Get", "Delete"}, []string{"Create", "Update"}},
		{"RecordingReport", []string{"RecordingID", "AccessTime", "AccessAt", "ViewCount", "Viewed"}, nil},
		{"RecordingReportAPI", []string{"AccessSummary", "AccessDetail"}, []string{"List", "Get"}},
		{"", []string{"NewMeetingAPI", "NewRecordingAPI", "NewRecordingReportAPI"}, nil},
	}
	for _, tt := range tests {
		for _, m := range tt.want {
			if !contains(methods[tt.recv], m) {
				t.Errorf("%s.%s not generated; have %v", tt.recv, m, methods[tt.recv])
			}
		}
		for _, m := range tt.notWant {
			if contains(methods[tt.recv], m) {
				t.Errorf("%s.%s should not be generated", tt.recv, m)
			}
		}
	}

	out := string(src)
	for _, want := range []string{
		"// Code generated by restschema gen. DO NOT EDIT.",
		`return r.Record.Bool("publicMeeting")`,
		`return r.Record.Int("joinBeforeHostMinutes")`,
		`a.d.ListAction(ctx, "recordingReport", "accessSummary", args)`,
		`a.d.GetAction(ctx, "recordingReport", "accessDetail", args)`,
		`func (a *MeetingAPI) Get(ctx context.Context, id string) (Meeting, error)`,
		`"github.com/artpar/restschema/core/paginate"`,
		`"time"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("generated code missing %q", want)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	builtin, _ := schemas.Builtin()
	first, err := Generate("", builtin)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	reversed := make([]*schema.ObjectSchema, len(builtin))
	for i, s := range builtin {
		reversed[len(builtin)-1-i] = s
	}
	second, _ := Generate("", reversed)
	if string(first) != string(second) {
		t.Error("output depends on schema order")
	}
	if !strings.Contains(string(first), "package "+DefaultPackage) {
		t.Errorf("default package not used")
	}
}

func TestGenerate_MinimalImports(t *testing.T) {
	s := mustParse(t, `
object: note
endpoint: notes
methods: []
properties:
  - { name: body }
`)
	src, err := Generate("notes", []*schema.ObjectSchema{s})
	if err != nil {
		t.Fatalf("Generate() error = %v\n%s", err, src)
	}
	out := string(src)
	for _, unwanted := range []string{`"context"`, `"time"`, "core/paginate"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("unused import %s emitted:\n%s", unwanted, out)
		}
	}
	_, _, methods := declarations(t, src)
	if !contains(methods["Note"], "Body") {
		t.Errorf("Note methods = %v", methods["Note"])
	}
}

func TestGenerate_Errors(t *testing.T) {
	room := mustParse(t, "object: room\nendpoint: rooms\nmethods: []\n")
	roomCopy := mustParse(t, "object: Room\nendpoint: rooms2\nmethods: []\n")
	clash := mustParse(t, `
object: clash
endpoint: clash
methods: []
properties:
  - { name: siteUrl }
  - { name: site_url }
`)
	reservedProp := mustParse(t, `
object: wrapped
endpoint: wrapped
methods: []
properties:
  - { name: record }
`)

	tests := []struct {
		name    string
		pkg     string
		schemas []*schema.ObjectSchema
		want    string
	}{
		{"no schemas", "x", nil, "no schemas"},
		{"bad package", "not-a-package", []*schema.ObjectSchema{room}, "invalid package name"},
		{"type clash", "x", []*schema.ObjectSchema{room, roomCopy}, "both generate Room"},
		{"property clash", "x", []*schema.ObjectSchema{clash}, "both map to SiteURL"},
		{"reserved", "x", []*schema.ObjectSchema{reservedProp}, "reserved method Record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.pkg, tt.schemas)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"id", "ID"},
		{"siteUrl", "SiteURL"},
		{"dialInIpAddress", "DialInIPAddress"},
		{"from_", "From"},
		{"recordingReport", "RecordingReport"},
		{"accessSummary", "AccessSummary"},
		{"host_email", "HostEmail"},
		{"sipAddress", "SIPAddress"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Identifier(tt.in); got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
