package config

import (
	"os"
	"path/filepath"
	"testing"

	"voxd/internal/types"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Errorf("provider = %q, want %q", cfg.Provider, "gemini")
	}
	if cfg.TriggerKey != "f9" {
		t.Errorf("trigger key = %q, want %q", cfg.TriggerKey, "f9")
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want %d", cfg.SampleRate, 44100)
	}
	if cfg.DefaultMode != types.ModeAssistant {
		t.Errorf("default mode = %q, want %q", cfg.DefaultMode, types.ModeAssistant)
	}
	if cfg.DefaultModel != types.ModelFast {
		t.Errorf("default model = %q, want %q", cfg.DefaultModel, types.ModelFast)
	}
	if cfg.DataDir == "" {
		t.Error("data dir not filled in")
	}
	if cfg.Models[types.ModelCapable] == "" {
		t.Error("capable model name not filled in")
	}
	if cfg.Instructions[types.ModeTranscribe] == "" {
		t.Error("transcribe instruction not filled in")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Provider = "openai"
	cfg.APIKey = "sk-test"
	cfg.TriggerKey = "f8"
	cfg.Models[types.ModelFast] = "gpt-4o-mini-audio-preview"
	cfg.DataDir = t.TempDir()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Provider != "openai" {
		t.Errorf("provider = %q, want %q", loaded.Provider, "openai")
	}
	if loaded.APIKey != "sk-test" {
		t.Errorf("api key = %q, want %q", loaded.APIKey, "sk-test")
	}
	if loaded.TriggerKey != "f8" {
		t.Errorf("trigger key = %q, want %q", loaded.TriggerKey, "f8")
	}
	if got := loaded.Models[types.ModelFast]; got != "gpt-4o-mini-audio-preview" {
		t.Errorf("fast model = %q, want %q", got, "gpt-4o-mini-audio-preview")
	}
	// Fields the file omitted still get defaults.
	if loaded.RequestTimeout != 90 {
		t.Errorf("request timeout = %d, want %d", loaded.RequestTimeout, 90)
	}
}

func TestLoadPartialFileFillsGaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	partial := []byte(`{"provider": "gemini", "api_key": "k", "data_dir": "` + dir + `"}`)
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Channels != 1 {
		t.Errorf("channels = %d, want 1", cfg.Channels)
	}
	if cfg.Models[types.ModelFast] == "" {
		t.Error("fast model not filled in")
	}
	if cfg.Instructions[types.ModeAssistant] == "" {
		t.Error("assistant instruction not filled in")
	}
}

func TestEnvOverridesAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.APIKey = "from-file"
	cfg.DataDir = t.TempDir()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	t.Setenv(EnvAPIKey, "from-env")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.APIKey != "from-env" {
		t.Errorf("api key = %q, want %q", loaded.APIKey, "from-env")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: true,
		},
		{
			name:    "zero sample rate",
			mutate:  func(c *Config) { c.SampleRate = -1 },
			wantErr: true,
		},
		{
			name:    "too many channels",
			mutate:  func(c *Config) { c.Channels = 6 },
			wantErr: true,
		},
		{
			name:    "missing model name",
			mutate:  func(c *Config) { c.Models[types.ModelCapable] = "" },
			wantErr: true,
		},
		{
			name:    "missing instruction",
			mutate:  func(c *Config) { c.Instructions[types.ModeAssistant] = "" },
			wantErr: true,
		},
		{
			name:    "bad default mode",
			mutate:  func(c *Config) { c.DefaultMode = "chat" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.DataDir = t.TempDir()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
