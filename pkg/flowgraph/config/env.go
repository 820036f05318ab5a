package config

import (
	"strings"
)

// FromEnv builds a Config from environment entries ("KEY=value") that start
// with prefix. The prefix is stripped, the rest is lowercased and split on
// double underscores into a nested path:
//
//	SCOUT_LLM__PROVIDER=openai  ->  llm.provider = "openai"
//	SCOUT_LOG_LEVEL=debug       ->  log_level = "debug"
//
// Values stay strings; Decode converts them to the target field types.
func FromEnv(prefix string, environ []string) Config {
	data := make(map[string]any)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		key = strings.ToLower(strings.TrimPrefix(key, prefix))
		if key == "" {
			continue
		}
		setPath(data, strings.Split(key, "__"), val)
	}
	return New(data)
}

// Alias copies the value of environment variable name to path when set.
// It covers conventional variables such as OPENAI_API_KEY that carry no
// prefix.
func Alias(environ []string, aliases map[string]string) Config {
	lookup := lookupTable(environ)
	data := make(map[string]any)
	for name, path := range aliases {
		if v, ok := lookup[name]; ok && v != "" {
			setPath(data, strings.Split(path, "."), v)
		}
	}
	return New(data)
}

func setPath(data map[string]any, parts []string, val any) {
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = val
}

func lookupTable(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
