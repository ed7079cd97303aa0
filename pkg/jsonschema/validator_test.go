package jsonschema

import (
	"errors"
	"strings"
	"testing"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": { "type": "string" },
		"age": { "type": "integer", "minimum": 0 },
		"tags": { "type": "array", "items": { "type": "string" } }
	},
	"required": ["name"],
	"additionalProperties": false
}`

func TestSchema_Validate(t *testing.T) {
	schema, err := Compile("person.json", []byte(personSchema))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantLocs  []string
		wantValue string
	}{
		{
			name:      "valid",
			doc:       `{"name": "John Doe", "age": 30}`,
			wantValid: true,
		},
		{
			name:     "missing required property",
			doc:      `{"age": 30}`,
			wantLocs: []string{""},
		},
		{
			name:      "wrong type",
			doc:       `{"name": "John Doe", "age": "thirty"}`,
			wantLocs:  []string{"/age"},
			wantValue: `"thirty"`,
		},
		{
			name:      "below minimum",
			doc:       `{"name": "John Doe", "age": -1}`,
			wantLocs:  []string{"/age"},
			wantValue: `-1`,
		},
		{
			name:      "array item",
			doc:       `{"name": "John Doe", "tags": ["a", 2]}`,
			wantLocs:  []string{"/tags/1"},
			wantValue: `2`,
		},
		{
			name:     "several problems",
			doc:      `{"age": "x", "extra": true}`,
			wantLocs: []string{"", "", "/age"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate([]byte(tt.doc))
			if tt.wantValid {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var violations ValidationErrors
			if !errors.As(err, &violations) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			if len(violations) != len(tt.wantLocs) {
				t.Fatalf("got %d violations (%v), want %d", len(violations), violations, len(tt.wantLocs))
			}

			locs := map[string]int{}
			for _, v := range violations {
				locs[v.Location]++
			}
			for _, want := range tt.wantLocs {
				if locs[want] == 0 {
					t.Errorf("no violation at %q in %v", want, violations)
				}
				locs[want]--
			}

			if tt.wantValue != "" && violations[0].Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", violations[0].Value, tt.wantValue)
			}
		})
	}
}

func TestSchema_ValidateInvalidJSON(t *testing.T) {
	schema := MustCompile("person.json", []byte(personSchema))

	err := schema.Validate([]byte(`{"name": `))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("Validate() error = %v, want invalid JSON", err)
	}
	var violations ValidationErrors
	if errors.As(err, &violations) {
		t.Errorf("malformed JSON reported as violations")
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	if _, err := Compile("bad.json", []byte(`{"type": 12}`)); err == nil {
		t.Error("Compile() error = nil, want error")
	}
	if _, err := Compile("bad.json", []byte(`{`)); err == nil {
		t.Error("Compile() error = nil, want error")
	}
}

func TestViolation_Error(t *testing.T) {
	v := &Violation{Location: "/load/workers", Message: "must be >= 1 but found 0", Value: "0"}
	if got, want := v.Error(), "/load/workers: must be >= 1 but found 0 (got 0)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	root := &Violation{Message: "missing properties: 'name'"}
	if got, want := root.Error(), "/: missing properties: 'name'"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	errs := ValidationErrors{v, root}
	if !strings.Contains(errs.Error(), "; ") {
		t.Errorf("ValidationErrors.Error() = %q, want joined messages", errs.Error())
	}
}

func TestPointerToPath(t *testing.T) {
	tests := map[string]string{
		"":                       "@this",
		"/":                      "@this",
		"/target/baseUrl":        "target.baseUrl",
		"/target/allowedHosts/0": "target.allowedHosts.0",
		"/a~1b/c.d":              `a/b.c\.d`,
		"/m~0n":                  "m~n",
	}
	for pointer, want := range tests {
		if got := pointerToPath(pointer); got != want {
			t.Errorf("pointerToPath(%q) = %q, want %q", pointer, got, want)
		}
	}
}
