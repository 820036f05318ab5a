// Package settings loads scoutd configuration from defaults, an optional
// YAML or JSON file and the environment.
package settings

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/config"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use a
// double underscore: SCOUT_LLM__PROVIDER.
const EnvPrefix = "SCOUT_"

// Settings is the full service configuration.
type Settings struct {
	Environment string `mapstructure:"environment"`

	Server     Server     `mapstructure:"server"`
	Log        Log        `mapstructure:"log"`
	LLM        LLM        `mapstructure:"llm"`
	Players    Players    `mapstructure:"players"`
	Leagues    Leagues    `mapstructure:"leagues"`
	Checkpoint Checkpoint `mapstructure:"checkpoint"`
	Session    Session    `mapstructure:"session"`
	Redis      Redis      `mapstructure:"redis"`
	Reports    Reports    `mapstructure:"reports"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	DebugErrors     bool          `mapstructure:"debug_errors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLM configures providers and per-task models.
type LLM struct {
	// Provider is used when a model name does not identify its provider.
	Provider string `mapstructure:"provider"`

	RouterModel   string `mapstructure:"router_model"`
	SQLModel      string `mapstructure:"sql_model"`
	ScoutModel    string `mapstructure:"scout_model"`
	ResponseModel string `mapstructure:"response_model"`

	GoogleAPIKey    string `mapstructure:"google_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`

	// KeyFile, when set, is re-read every RefreshInterval for the key of
	// the default provider.
	KeyFile         string        `mapstructure:"key_file"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	MaxAttempts  int           `mapstructure:"max_attempts"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	MaxSQLSteps  int           `mapstructure:"max_sql_steps"`
	MaxRows      int           `mapstructure:"max_rows"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

// Players configures the player search index and detail API.
type Players struct {
	APIBaseURL    string        `mapstructure:"api_base_url"`
	DetailTimeout time.Duration `mapstructure:"detail_timeout"`
	SearchLimit   int           `mapstructure:"search_limit"`
	MinScore      int           `mapstructure:"min_score"`
}

// Leagues locates the read-only league statistics databases.
type Leagues struct {
	DataDir       string `mapstructure:"data_dir"`
	DefaultLeague string `mapstructure:"default_league"`
	DefaultSeason string `mapstructure:"default_season"`
}

// Checkpoint selects the checkpoint store.
type Checkpoint struct {
	Backend    string        `mapstructure:"backend"`
	Path       string        `mapstructure:"path"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxHistory int           `mapstructure:"max_history"`
}

// Session configures turn serialization.
type Session struct {
	DistributedLock bool          `mapstructure:"distributed_lock"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	MaxIterations   int           `mapstructure:"max_iterations"`
}

// Redis configures the shared Redis client.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Reports configures scouting report delivery.
type Reports struct {
	Backend       string        `mapstructure:"backend"`
	LocalDir      string        `mapstructure:"local_dir"`
	Folder        string        `mapstructure:"folder"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	SigningKey    string        `mapstructure:"signing_key"`
	URLTTL        time.Duration `mapstructure:"url_ttl"`
}

// Checkpoint and report backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendLocal  = "local"
)

// Defaults returns the built-in configuration layer.
func Defaults() config.Config {
	return config.New(map[string]any{
		"environment": "development",
		"server": map[string]any{
			"addr":             ":8000",
			"debug_errors":     false,
			"shutdown_timeout": "15s",
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"llm": map[string]any{
			"provider":         "google",
			"router_model":     "gemini-2.0-flash",
			"sql_model":        "gemini-2.0-flash",
			"scout_model":      "gemini-2.5-pro",
			"response_model":   "gemini-2.0-flash",
			"refresh_interval": "5m",
			"max_attempts":     3,
			"call_timeout":     "60s",
			"max_sql_steps":    8,
			"max_rows":         200,
			"history_limit":    20,
		},
		"players": map[string]any{
			"api_base_url":   "http://localhost:8000",
			"detail_timeout": "30s",
			"search_limit":   20,
			"min_score":      80,
		},
		"leagues": map[string]any{
			"data_dir":       "data",
			"default_league": "CEBL",
			"default_season": "2025",
		},
		"checkpoint": map[string]any{
			"backend": BackendSQLite,
			"path":    "checkpoints.db",
		},
		"session": map[string]any{
			"lock_ttl":       "2m",
			"max_iterations": 50,
		},
		"redis": map[string]any{
			"addr":   "localhost:6379",
			"prefix": "scoutgraph:",
		},
		"reports": map[string]any{
			"backend":   BackendLocal,
			"local_dir": "reports",
			"folder":    "scouting-reports",
			"url_ttl":   "168h",
		},
	})
}

// envAliases maps conventional variables onto configuration paths.
var envAliases = map[string]string{
	"ENVIRONMENT":       "environment",
	"LOG_LEVEL":         "log.level",
	"API_BASE_URL":      "players.api_base_url",
	"LLM_PROVIDER":      "llm.provider",
	"GEMINI_API_KEY":    "llm.google_api_key",
	"GOOGLE_API_KEY":    "llm.google_api_key",
	"OPENAI_API_KEY":    "llm.openai_api_key",
	"ANTHROPIC_API_KEY": "llm.anthropic_api_key",
	"REDIS_ADDR":        "redis.addr",
}

// Load builds Settings from defaults, the file at path (skipped when empty)
// and environ, in increasing precedence. Prefixed variables win over
// conventional ones.
func Load(path string, environ []string) (Settings, error) {
	cfg := Defaults()
	if path != "" {
		file, err := config.FromFile(path, environ)
		if err != nil {
			return Settings{}, fmt.Errorf("load settings: %w", err)
		}
		cfg = cfg.Merge(file)
	}
	cfg = cfg.Merge(config.Alias(environ, envAliases))
	cfg = cfg.Merge(config.FromEnv(EnvPrefix, environ))

	var s Settings
	if err := cfg.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	s.Reports.Folder = strings.Trim(s.Reports.Folder, "/")
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var errs []error
	switch strings.ToLower(s.LLM.Provider) {
	case "google", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", s.LLM.Provider))
	}
	switch s.Checkpoint.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", s.Checkpoint.Backend))
	}
	if s.Checkpoint.Backend == BackendSQLite && s.Checkpoint.Path == "" {
		errs = append(errs, errors.New("checkpoint.path: required for sqlite backend"))
	}
	switch s.Reports.Backend {
	case BackendLocal, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("reports.backend: unknown backend %q", s.Reports.Backend))
	}
	if s.Reports.Backend == BackendRedis && s.Reports.SigningKey == "" {
		errs = append(errs, errors.New("reports.signing_key: required for redis backend"))
	}
	if s.Players.DetailTimeout <= 0 {
		errs = append(errs, errors.New("players.detail_timeout: must be positive"))
	}
	if s.LLM.MaxAttempts < 1 {
		errs = append(errs, errors.New("llm.max_attempts: must be at least 1"))
	}
	if _, err := ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any component needs the Redis client.
func (s Settings) UsesRedis() bool {
	return s.Checkpoint.Backend == BackendRedis ||
		s.Reports.Backend == BackendRedis ||
		s.Session.DistributedLock
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown level %q", name)
	}
	return level, nil
}

// NewLogger returns the process logger writing to w.
func (s Settings) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(s.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(s.Log.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("environment", s.Environment)
}
