// Package jsonschema checks JSON documents against a JSON Schema and reports
// every violation together with the offending value.
package jsonschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Violation is one place where a document breaks the schema.
type Violation struct {
	// Location is the JSON pointer of the offending value, "" for the root.
	Location string
	Message  string
	// Value is the raw JSON of the offending value, if it exists.
	Value string
}

func (v *Violation) Error() string {
	loc := v.Location
	if loc == "" {
		loc = "/"
	}
	if v.Value != "" {
		return fmt.Sprintf("%s: %s (got %s)", loc, v.Message, v.Value)
	}
	return fmt.Sprintf("%s: %s", loc, v.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []*Violation

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema document. name is used in error messages.
func Compile(name string, schema []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, strings.NewReader(string(schema))); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(name string, schema []byte) *Schema {
	s, err := Compile(name, schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc, a JSON document. It returns ValidationErrors when doc
// breaks the schema, or another error when doc is not JSON.
func (s *Schema) Validate(doc []byte) error {
	var data interface{}
	if err := json.Unmarshal(doc, &data); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}

	violations := extractViolations(validationErr, nil)
	for _, v := range violations {
		if res := gjson.GetBytes(doc, pointerToPath(v.Location)); res.Exists() && v.Location != "" {
			v.Value = res.Raw
		}
	}
	return violations
}

// extractViolations collects the leaf errors; inner nodes only say that a
// subschema failed.
func extractViolations(err *jsonschema.ValidationError, out ValidationErrors) ValidationErrors {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "/" {
			loc = ""
		}
		return append(out, &Violation{Location: loc, Message: err.Message})
	}
	for _, cause := range err.Causes {
		out = extractViolations(cause, out)
	}
	return out
}

// pointerToPath converts a JSON pointer such as /target/allowedHosts/0 to
// the gjson path target.allowedHosts.0.
func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return "@this"
	}

	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		p = strings.ReplaceAll(p, "~0", "~")
		// gjson metacharacters
		for _, c := range []string{`\`, ".", "*", "?", "|", "#", "@"} {
			p = strings.ReplaceAll(p, c, `\`+c)
		}
		parts[i] = p
	}
	return strings.Join(parts, ".")
}
