package main

import (
	"reflect"
	"testing"
)

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected map[string]any
		wantErr  bool
	}{
		{
			name:     "simple",
			args:     []string{"title=Standup", "max=5"},
			expected: map[string]any{"title": "Standup", "max": "5"},
		},
		{
			name:     "value with equals",
			args:     []string{"agenda=a=b"},
			expected: map[string]any{"agenda": "a=b"},
		},
		{
			name:     "empty value",
			args:     []string{"agenda="},
			expected: map[string]any{"agenda": ""},
		},
		{
			name:     "json list",
			args:     []string{`integrationTags=["a","b"]`},
			expected: map[string]any{"integrationTags": []any{"a", "b"}},
		},
		{
			name:     "json object",
			args:     []string{`registration={"autoAccept":true}`},
			expected: map[string]any{"registration": map[string]any{"autoAccept": true}},
		},
		{
			name:     "broken json stays a string",
			args:     []string{`title=[draft`},
			expected: map[string]any{"title": "[draft"},
		},
		{
			name:     "no args",
			args:     nil,
			expected: map[string]any{},
		},
		{name: "missing equals", args: []string{"title"}, wantErr: true},
		{name: "empty key", args: []string{"=x"}, wantErr: true},
		{name: "duplicate", args: []string{"a=1", "a=2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyValues(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseKeyValues(%v) should fail", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseKeyValues(%v) error = %v", tt.args, err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseKeyValues(%v) = %#v, want %#v", tt.args, got, tt.expected)
			}
		})
	}
}
