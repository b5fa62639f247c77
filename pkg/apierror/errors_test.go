package apierror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", &NotFoundError{Verb: "GET", URL: "meetings/abc"}, true},
		{"wrapped not found", fmt.Errorf("get meeting: %w", &NotFoundError{}), true},
		{"transport 500", &TransportError{StatusCode: 500}, false},
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInputError(t *testing.T) {
	inputs := []error{
		&MissingRequiredFieldError{Field: "title"},
		&UnknownFieldError{Field: "colour"},
		&DuplicateFieldError{Field: "from_", Alias: "from"},
		&TypeMismatchError{Field: "max", Expected: "int", Value: "ten"},
		&MissingIdentifierError{Object: "meeting", Method: "get"},
		&UnsupportedMethodError{Object: "recording", Method: "create"},
		&UnknownResourceError{Name: "rooms"},
		&UnknownActionError{Object: "meeting", Action: "archive"},
	}
	for _, err := range inputs {
		if !IsInputError(fmt.Errorf("wrapped: %w", err)) {
			t.Errorf("IsInputError(%T) = false, want true", err)
		}
	}

	if IsInputError(&TransportError{StatusCode: 400}) {
		t.Error("TransportError should not be an input error")
	}
	if IsInputError(&NotFoundError{}) {
		t.Error("NotFoundError should not be an input error")
	}
}

func TestTransportError_Error(t *testing.T) {
	err := &TransportError{Verb: "POST", URL: "meetings", StatusCode: 400, Body: "  bad start time\n"}
	if got := err.Error(); got != "POST meetings: status 400: bad start time" {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("connection refused")
	err = &TransportError{Verb: "GET", URL: "meetings", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("TransportError should unwrap to its cause")
	}

	long := &TransportError{Verb: "GET", URL: "x", StatusCode: 502, Body: strings.Repeat("a", 600)}
	if !strings.HasSuffix(long.Error(), "...") {
		t.Error("long bodies should be truncated")
	}
}

func TestSchemaError_Error(t *testing.T) {
	err := &SchemaError{Object: "meeting", Err: errors.New("id property is required")}
	if got := err.Error(); got != `invalid schema "meeting": id property is required` {
		t.Errorf("Error() = %q", got)
	}
}
