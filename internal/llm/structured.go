package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// Schema is a compiled JSON Schema for model output.
type Schema struct {
	source   string
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(name, source string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	url := name + ".json"
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{source: source, compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name, source string) *Schema {
	s, err := CompileSchema(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

// Source returns the schema document, for embedding in prompts.
func (s *Schema) Source() string {
	return s.source
}

// Decode extracts a JSON object from text, validates it and unmarshals it
// into out. Parse failures are *errors.JSONParseError and schema failures
// *errors.ValidationError.
func (s *Schema) Decode(text string, out any) error {
	raw := ExtractJSON(text)

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return &flowerrors.JSONParseError{Input: truncate(raw, 200), Message: err.Error()}
	}
	if err := s.compiled.Validate(doc); err != nil {
		field := ""
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			field = leaf.InstanceLocation
			return &flowerrors.ValidationError{Field: field, Message: leaf.Message}
		}
		return &flowerrors.ValidationError{Message: err.Error()}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &flowerrors.JSONParseError{Input: truncate(raw, 200), Message: err.Error()}
	}
	return nil
}

// Structured asks client for JSON matching schema and decodes it into a T.
// A response that fails to parse or validate is returned as an error, not
// retried.
func Structured[T any](ctx context.Context, client Client, req Request, schema *Schema) (T, error) {
	var out T
	req.JSON = true
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return out, err
	}
	if err := schema.Decode(resp.Text, &out); err != nil {
		return out, err
	}
	return out, nil
}

// ExtractJSON strips Markdown code fences and surrounding prose, returning
// the outermost JSON object in text.
func ExtractJSON(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		if i := strings.LastIndex(t, "```"); i >= 0 {
			t = t[:i]
		}
		t = strings.TrimSpace(t)
	}
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1]
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
