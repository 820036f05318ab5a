package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
)

// placeholder matches ${name}.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Template is a parsed text with ${name} placeholders.
//
// Template is safe for concurrent use.
type Template struct {
	name    string
	text    string
	vars    []string
	missing MissingAction
}

// Parse parses text. An opening "${" without a valid name and closing brace
// is an error, so typos surface at startup rather than in a rendered prompt.
func Parse(name, text string, opts ...Option) (*Template, error) {
	stripped := placeholder.ReplaceAllString(text, "")
	if i := strings.Index(stripped, "${"); i >= 0 {
		return nil, &SyntaxError{Template: name, Near: snippet(stripped[i:])}
	}

	t := &Template{name: name, text: text, missing: MissingError}
	for _, opt := range opts {
		opt(t)
	}
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(t.vars, m[1]) {
			t.vars = append(t.vars, m[1])
		}
	}
	return t, nil
}

// MustParse is Parse for package-level templates.
func MustParse(name, text string, opts ...Option) *Template {
	t, err := Parse(name, text, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.name
}

// Vars returns the placeholder names in order of first use.
func (t *Template) Vars() []string {
	return slices.Clone(t.vars)
}

// Render substitutes vars into the template. Strings are inserted as is,
// fmt.Stringer values through String, nil as an empty string, and anything
// else as indented JSON.
func (t *Template) Render(vars map[string]any) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(t.text, func(match string) string {
		name := match[2 : len(match)-1]
		v, ok := vars[name]
		if !ok {
			switch t.missing {
			case MissingEmpty:
				return ""
			case MissingKeep:
				return match
			default:
				missing = append(missing, name)
				return match
			}
		}
		s, err := format(v)
		if err != nil {
			missing = append(missing, name)
			return match
		}
		return s
	})
	if len(missing) > 0 {
		return out, &UndefinedVariableError{Template: t.name, Names: missing}
	}
	return out, nil
}

// MustRender is Render for callers that supply every variable.
func (t *Template) MustRender(vars map[string]any) string {
	out, err := t.Render(vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return out
}

func format(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int64, reflect.Float64:
		return fmt.Sprint(v), nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func snippet(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}

// SyntaxError reports a malformed placeholder.
type SyntaxError struct {
	Template string
	Near     string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %s: malformed placeholder near %q", e.Template, e.Near)
}

// UndefinedVariableError lists placeholders that had no value.
type UndefinedVariableError struct {
	Template string
	Names    []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("template %s: undefined variable: %s", e.Template, e.Names[0])
	}
	return fmt.Sprintf("template %s: undefined variables: %s", e.Template, strings.Join(e.Names, ", "))
}
