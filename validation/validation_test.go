package validation

import (
	"errors"
	"strings"
	"testing"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"telefono,omitempty" validate:"omitempty,numeric"`
	Internal string `json:"-" validate:"max=3"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      signup
		wantFields map[string]string
	}{
		{
			name:  "valid",
			input: signup{Email: "ana@example.com", Password: "secret1"},
		},
		{
			name:  "missing fields use json names",
			input: signup{},
			wantFields: map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
			},
		},
		{
			name:  "format checks",
			input: signup{Email: "not-an-email", Password: "abc", Phone: "55-12"},
			wantFields: map[string]string{
				"email":    "must be a valid email address",
				"password": "value is too short (minimum 6)",
				"telefono": "must contain only digits",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("Struct() unexpected error = %v", err)
				}
				return
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Struct() error = %v, want *Error", err)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error does not match ErrInvalid")
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.wantFields)
			}
			for name, want := range tt.wantFields {
				if verr.Fields[name] != want {
					t.Errorf("field %s = %q, want %q", name, verr.Fields[name], want)
				}
			}
		})
	}
}

func TestError_MessageIsSorted(t *testing.T) {
	err := &Error{Fields: map[string]string{"b": "two", "a": "one"}}
	if got := err.Error(); !strings.HasSuffix(got, "a: one; b: two") {
		t.Errorf("Error() = %q", got)
	}
}

func TestStruct_IgnoredTagFallsBackToFieldName(t *testing.T) {
	err := Struct(signup{Email: "ana@example.com", Password: "secret1", Internal: "toolong"})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("Struct() error = %v, want *Error", err)
	}
	if _, ok := verr.Fields["Internal"]; !ok {
		t.Errorf("fields = %v, want the Go field name for json:\"-\"", verr.Fields)
	}
}
