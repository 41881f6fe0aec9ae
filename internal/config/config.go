// Package config provides configuration loading and path management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/tidwall/jsonc"
)

// Config holds server configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int `json:"port,omitempty"`

	// DataDir overrides the storage directory (default XDG data path).
	DataDir string `json:"dataDir,omitempty"`

	// Model is the chat model identifier, e.g. "gpt-4".
	Model string `json:"model,omitempty"`

	// TitleModel is the model used for title synthesis; defaults to Model.
	TitleModel string `json:"titleModel,omitempty"`

	// OpenAI credentials.
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// AuthSecret is the HMAC secret for verifying bearer tokens.
	AuthSecret string `json:"authSecret,omitempty"`

	// MaxSteps bounds the number of generation steps per turn.
	MaxSteps int `json:"maxSteps,omitempty"`

	// LogLevel is DEBUG|INFO|WARN|ERROR|FATAL.
	LogLevel string `json:"logLevel,omitempty"`

	// PrettyLogs enables human-readable console output.
	PrettyLogs bool `json:"prettyLogs,omitempty"`
}

// Defaults applied after all config sources are merged.
const (
	DefaultPort     = 8080
	DefaultModel    = "gpt-4"
	DefaultMaxSteps = 5
)

// Load loads configuration from, in priority order (later wins):
//  1. global config (~/.config/lumo/lumo.json or lumo.jsonc)
//  2. working-directory config (lumo.json or lumo.jsonc)
//  3. LUMO_* environment variables
func Load(directory string) (*Config, error) {
	cfg := &Config{}

	globalDir := GetPaths().Config
	loadFile(filepath.Join(globalDir, "lumo.json"), cfg)
	loadFile(filepath.Join(globalDir, "lumo.jsonc"), cfg)

	if directory != "" {
		loadFile(filepath.Join(directory, "lumo.json"), cfg)
		loadFile(filepath.Join(directory, "lumo.jsonc"), cfg)
	}

	applyEnvOverrides(cfg)

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = cfg.Model
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.DataDir == "" {
		cfg.DataDir = GetPaths().StoragePath()
	}

	return cfg, nil
}

// loadFile merges a single config file into cfg. Missing files are skipped.
func loadFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	merge(cfg, &fileCfg)
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate replaces {env:VAR} placeholders with environment values.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func merge(dst, src *Config) {
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.TitleModel != "" {
		dst.TitleModel = src.TitleModel
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.AuthSecret != "" {
		dst.AuthSecret = src.AuthSecret
	}
	if src.MaxSteps != 0 {
		dst.MaxSteps = src.MaxSteps
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.PrettyLogs {
		dst.PrettyLogs = true
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("LUMO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LUMO_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("LUMO_AUTH_SECRET"); v != "" {
		cfg.AuthSecret = v
	}
	if v := os.Getenv("LUMO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
