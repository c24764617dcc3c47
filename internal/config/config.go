package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables that override file configuration.
const (
	EnvAPIURL   = "JURIS_API_URL"
	EnvAPIToken = "JURIS_API_TOKEN"
)

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the root of the legal documents backend (no trailing slash needed).
	APIBaseURL string `json:"api_base_url"`

	// APIToken is sent as a bearer token when non-empty.
	APIToken string `json:"api_token,omitempty"`

	// PageLimit is the page size requested from cursor-paginated endpoints.
	PageLimit int `json:"page_limit"`

	// FilterDebounceMS coalesces filter edits before a fetch is issued.
	FilterDebounceMS int `json:"filter_debounce_ms"`

	// RequestTimeoutSeconds bounds a single HTTP attempt.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// RetryMax is the number of retries for network errors and 5xx responses.
	RetryMax int `json:"retry_max"`

	// RequestsPerSecond caps outgoing requests. 0 means the default.
	RequestsPerSecond float64 `json:"requests_per_second"`

	// NoteMaxChars is the maximum character count for a local note body.
	NoteMaxChars int `json:"note_max_chars"`

	// VoiceCommand is the argv of an external recorder that writes audio to stdout
	// until it is stopped, e.g. ["arecord", "-q", "-f", "cd", "-t", "wav", "-d", "10"].
	VoiceCommand []string `json:"voice_command,omitempty"`

	// VoiceMaxBytes caps a single voice recording.
	VoiceMaxBytes int64 `json:"voice_max_bytes"`

	// LogLevel is a zerolog level name: debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// LogFormat is "console" (default) or "json".
	LogFormat string `json:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type prefixes to disable entirely
	// (e.g. "chat" disables chat_send).
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:            "http://localhost:8000",
		PageLimit:             20,
		FilterDebounceMS:      500,
		RequestTimeoutSeconds: 30,
		RetryMax:              3,
		RequestsPerSecond:     5,
		NoteMaxChars:          20000,
		VoiceMaxBytes:         10 * 1024 * 1024,
		LogLevel:              "info",
	}
}

// FilterDebounce returns the debounce delay as a duration.
func (c *Config) FilterDebounce() time.Duration {
	return time.Duration(c.FilterDebounceMS) * time.Millisecond
}

// RequestTimeout returns the per-attempt HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json and applies env overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.juris.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return ApplyEnv(cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.juris) and repo (.juris) directories.
// Repo config is found by walking upward from startDir to find the nearest .juris/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return ApplyEnv(Merge(Merge(DefaultConfig(), global), repo)), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .juris/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".juris", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overlays JURIS_API_URL and JURIS_API_TOKEN when set.
func ApplyEnv(cfg *Config) *Config {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIToken)); v != "" {
		cfg.APIToken = v
	}
	return cfg
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path over the defaults.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except VoiceCommand which is an argv and is replaced as a whole.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.APIBaseURL = firstString(overlay.APIBaseURL, base.APIBaseURL)
	result.APIToken = firstString(overlay.APIToken, base.APIToken)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstString(overlay.LogFormat, base.LogFormat)

	result.PageLimit = firstInt(overlay.PageLimit, base.PageLimit)
	result.FilterDebounceMS = firstInt(overlay.FilterDebounceMS, base.FilterDebounceMS)
	result.RequestTimeoutSeconds = firstInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.RetryMax = firstInt(overlay.RetryMax, base.RetryMax)
	result.NoteMaxChars = firstInt(overlay.NoteMaxChars, base.NoteMaxChars)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.RequestsPerSecond = overlay.RequestsPerSecond
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = base.RequestsPerSecond
	}
	result.VoiceMaxBytes = overlay.VoiceMaxBytes
	if result.VoiceMaxBytes == 0 {
		result.VoiceMaxBytes = base.VoiceMaxBytes
	}

	result.VoiceCommand = base.VoiceCommand
	if len(overlay.VoiceCommand) > 0 {
		result.VoiceCommand = overlay.VoiceCommand
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
