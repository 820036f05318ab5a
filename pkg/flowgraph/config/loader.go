package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUndefinedVariable is returned when a file references an unset
// variable without a default.
var ErrUndefinedVariable = errors.New("config: undefined variable")

var reference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// FromFile loads a .yaml, .yml or .json file. References of the form
// ${NAME} or ${NAME:-default} are replaced from environ before parsing, so
// secrets can stay out of the file.
func FromFile(path string, environ []string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	data, err = Expand(data, environ)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// Expand replaces ${NAME} and ${NAME:-default} in data. An empty value
// counts as set. Every undefined name is reported.
func Expand(data []byte, environ []string) ([]byte, error) {
	env := lookupTable(environ)
	var missing []string
	out := reference.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := reference.FindSubmatch(m)
		if v, ok := env[string(sub[1])]; ok {
			return []byte(v)
		}
		if sub[2] != nil {
			return sub[2]
		}
		missing = append(missing, string(sub[1]))
		return m
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, strings.Join(missing, ", "))
	}
	return out, nil
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}
