/*
Package config loads layered service configuration.

A Config wraps a map[string]any read from YAML, JSON or the environment and
offers typed accessors that fall back to a default when a key is missing or
has the wrong type. Keys may be dotted paths into nested sections.

# Basic Usage

	cfg, err := config.FromFile("scoutd.yaml", os.Environ())
	if err != nil {
	    return err
	}

	provider := cfg.String("llm.provider", "google")
	timeout := cfg.Duration("players.detail_timeout", 30*time.Second)
	leagues := cfg.StringSlice("leagues", nil)

# Layering

Merge overlays one Config on another. Nested sections merge key by key:

	file, _ := config.FromFile("scoutd.yaml", os.Environ())
	env := config.FromEnv("SCOUT_", os.Environ())
	cfg := file.Merge(env)

Files may reference variables as ${NAME} or ${NAME:-default}.
FromEnv maps SCOUT_LLM__PROVIDER to llm.provider. Alias maps conventional
variables such as OPENAI_API_KEY onto a path.

# Decoding

Decode fills a struct tagged for mapstructure. Strings from the environment
are converted to the field types, durations included:

	var s Settings
	if err := cfg.Decode(&s); err != nil {
	    return err
	}

# Type Coercion

Duration accepts a duration string ("30s"), a number of seconds, or a
time.Duration. Int accepts whole float64 values. Accessors never panic.

# Thread Safety

Config is read-only after creation and safe for concurrent reads. Merge
returns a new Config.
*/
package config
