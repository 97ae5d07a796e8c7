// Package config loads pipeline settings from an mvir.yaml file and
// resolves them against defaults and command-line overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultModel is used when neither the file nor the CLI names one.
const DefaultModel = "claude-sonnet-4-5"

// Settings holds pipeline configuration from mvir.yaml.
type Settings struct {
	// Provider names the completion backend: anthropic, openai, google,
	// or mock.
	Provider string `yaml:"provider"`
	// Model names the provider model.
	Model string `yaml:"model"`
	// Temperature and MaxTokens are passed through to the provider.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// CacheDir enables the response cache at this directory when set.
	CacheDir string `yaml:"cache_dir"`
	// DebugDir receives per-problem debug bundles on failure when set.
	DebugDir string `yaml:"debug_dir"`
	// Strict enforces the grounding contract as an error.
	Strict bool `yaml:"strict"`
	// Degrade recovers a minimal valid document instead of failing on
	// unrepairable validation errors.
	Degrade bool `yaml:"degrade"`
	// Workers bounds batch concurrency.
	Workers int `yaml:"workers"`
}

// Defaults returns the settings used when no file is present.
func Defaults() Settings {
	return Settings{
		Provider:    "anthropic",
		Model:       DefaultModel,
		Temperature: 0.0,
		MaxTokens:   2000,
		Strict:      true,
		Workers:     1,
	}
}

// Load reads settings from path, layered over Defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	switch s.Provider {
	case "anthropic", "openai", "google", "mock", "":
	default:
		return fmt.Errorf("config: unknown provider %q", s.Provider)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("config: temperature %g out of range [0, 2]", s.Temperature)
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("config: max_tokens must be non-negative")
	}
	if s.Workers < 0 {
		return fmt.Errorf("config: workers must be non-negative")
	}
	return nil
}
