// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"voxd/internal/types"
)

const (
	appName        = "voxd"
	configFileName = "config.json"

	// EnvAPIKey overrides the stored API key when set.
	EnvAPIKey = "VOXD_API_KEY"
)

// Default instruction texts sent alongside the audio, one per mode.
const (
	defaultAssistantInstruction = "Listen to the recording and answer the question asked in it. " +
		"Reply with the answer text only, no preamble and no commentary."
	defaultTranscribeInstruction = "Transcribe this recording verbatim, keeping the original language. " +
		"Return only the transcribed text, without additions or comments."
)

// Config represents the application configuration.
type Config struct {
	Provider   string `json:"provider"`           // "gemini" or "openai"
	APIKey     string `json:"api_key"`            // overridable via VOXD_API_KEY
	BaseURL    string `json:"base_url,omitempty"` // optional API endpoint override
	TriggerKey string `json:"trigger_key"`

	SampleRate     int `json:"sample_rate"`
	Channels       int `json:"channels"`
	RequestTimeout int `json:"request_timeout_sec"`

	Models       map[types.ModelChoice]string `json:"models"`
	Instructions map[types.Mode]string        `json:"instructions"`

	DefaultMode  types.Mode        `json:"default_mode"`
	DefaultModel types.ModelChoice `json:"default_model"`

	// DataDir holds the audio and history subdirectories.
	DataDir string `json:"data_dir"`
	LogFile string `json:"log_file,omitempty"`

	HistoryDays    int  `json:"history_days"`
	DisableHistory bool `json:"disable_history,omitempty"`
}

// Default returns the built-in configuration. Paths that depend on the
// user's home directory are filled in by normalize.
func Default() *Config {
	return &Config{
		Provider:       "gemini",
		TriggerKey:     "f9",
		SampleRate:     44100,
		Channels:       1,
		RequestTimeout: 90,
		Models: map[types.ModelChoice]string{
			types.ModelFast:    "gemini-2.5-flash",
			types.ModelCapable: "gemini-2.5-pro",
		},
		Instructions: map[types.Mode]string{
			types.ModeAssistant:  defaultAssistantInstruction,
			types.ModeTranscribe: defaultTranscribeInstruction,
		},
		DefaultMode:  types.ModeAssistant,
		DefaultModel: types.ModelFast,
		HistoryDays:  30,
	}
}

// Load loads configuration from path, or from the default location when path
// is empty. A missing file yields the defaults. The returned config is
// normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file, run on defaults.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save persists the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// AudioDir returns the directory recordings are written to.
func (c *Config) AudioDir() string {
	return filepath.Join(c.DataDir, "audio")
}

// HistoryDir returns the directory the history store lives in.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "history")
}

// normalize fills gaps a hand-edited config file may leave.
func (c *Config) normalize() error {
	def := Default()

	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.TriggerKey == "" {
		c.TriggerKey = def.TriggerKey
	}
	if c.SampleRate == 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Channels == 0 {
		c.Channels = def.Channels
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.DefaultMode == "" {
		c.DefaultMode = def.DefaultMode
	}
	if c.DefaultModel == "" {
		c.DefaultModel = def.DefaultModel
	}
	if c.HistoryDays == 0 {
		c.HistoryDays = def.HistoryDays
	}

	if c.Models == nil {
		c.Models = map[types.ModelChoice]string{}
	}
	for choice, name := range def.Models {
		if c.Models[choice] == "" {
			c.Models[choice] = name
		}
	}

	if c.Instructions == nil {
		c.Instructions = map[types.Mode]string{}
	}
	for mode, text := range def.Instructions {
		if c.Instructions[mode] == "" {
			c.Instructions[mode] = text
		}
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, "."+appName)
	}

	return nil
}

// Validate rejects configurations the agent cannot run with. The API key is
// checked separately at startup so key-less commands still work.
func (c *Config) Validate() error {
	if c.Provider != "gemini" && c.Provider != "openai" {
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	if c.TriggerKey == "" {
		return fmt.Errorf("trigger key required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeout)
	}
	if !c.DefaultMode.Valid() {
		return fmt.Errorf("unknown default mode: %q", c.DefaultMode)
	}
	if !c.DefaultModel.Valid() {
		return fmt.Errorf("unknown default model: %q", c.DefaultModel)
	}
	for _, choice := range []types.ModelChoice{types.ModelFast, types.ModelCapable} {
		if c.Models[choice] == "" {
			return fmt.Errorf("model name for %q required", choice)
		}
	}
	for _, mode := range []types.Mode{types.ModeAssistant, types.ModeTranscribe} {
		if c.Instructions[mode] == "" {
			return fmt.Errorf("instruction text for %q required", mode)
		}
	}
	return nil
}
