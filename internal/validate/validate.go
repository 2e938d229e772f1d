// Package validate checks request payloads against JSON Schemas and reports
// failures per field.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldError is one failed constraint. Field is the dotted path of the
// offending value; it is empty for document-level failures.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every constraint a payload failed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Schema is a compiled JSON Schema plus optional friendly messages keyed by
// "field/keyword", e.g. "nickname/maxLength".
type Schema struct {
	schema   *jsonschema.Schema
	messages map[string]string
}

// MustCompile compiles a draft 2020-12 schema and panics if it is invalid.
// Schemas are package-level constants, so a failure is a programming error.
func MustCompile(name, source string, messages map[string]string) *Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		panic(fmt.Sprintf("validate: add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("validate: compile schema %s: %v", name, err))
	}
	return &Schema{schema: schema, messages: messages}
}

// Validate checks v, which may be raw JSON ([]byte, json.RawMessage) or any
// value that marshals to JSON. It returns a *ValidationError on failure.
func (s *Schema) Validate(v any) error {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case json.RawMessage:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("validate: marshal payload: %w", err)
		}
		raw = b
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Invalid("", "JSON inválido")
	}

	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate: %w", err)
	}
	return &ValidationError{Fields: s.collect(ve)}
}

func (s *Schema) collect(root *jsonschema.ValidationError) []FieldError {
	seen := make(map[string]bool)
	var out []FieldError
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		field := fieldName(e.InstanceLocation)
		keyword := lastSegment(e.KeywordLocation)
		fields := []string{field}
		if keyword == "required" {
			fields = missingProperties(e.Message, field)
		}
		for _, f := range fields {
			msg := e.Message
			if friendly, ok := s.messages[f+"/"+keyword]; ok {
				msg = friendly
			}
			key := f + "\x00" + msg
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, FieldError{Field: f, Message: msg})
		}
	}
	walk(root)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// fieldName turns a JSON pointer like "/categories/0" into "categories.0".
func fieldName(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	return strings.ReplaceAll(pointer, "/", ".")
}

func lastSegment(pointer string) string {
	if i := strings.LastIndex(pointer, "/"); i >= 0 {
		return pointer[i+1:]
	}
	return pointer
}

// missingProperties extracts property names from jsonschema's
// "missing properties: 'postId', 'content'" message.
func missingProperties(message, parent string) []string {
	parts := strings.Split(message, "'")
	var names []string
	for i := 1; i < len(parts); i += 2 {
		name := parts[i]
		if parent != "" {
			name = parent + "." + name
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return []string{parent}
	}
	return names
}
