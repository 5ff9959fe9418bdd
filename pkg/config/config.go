package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
)

// DefaultFollowupPrompt is the analysis prompt sent with an automatic
// follow-up turn when the host does not configure its own.
const DefaultFollowupPrompt = "Analyze the attached generated image. If it contains text, transcribe it. " +
	"If it contains people, describe posture, expressions, and notable details. " +
	"Then continue the task."

// Config is an immutable snapshot of the loopback policy. The host
// builds one per evaluation; nothing in the pipeline mutates it.
type Config struct {
	Enabled            bool     `env:"IMAGE_LOOPBACK_ENABLE" envDefault:"false"`
	AllowedTools       []string `env:"IMAGE_LOOPBACK_ALLOWED_TOOLS" envDefault:"generate_image"`
	AllowedMimeTypes   []string `env:"IMAGE_LOOPBACK_ALLOWED_MIME_TYPES" envDefault:"image/png,image/jpeg,image/webp"`
	MaxBytes           int      `env:"IMAGE_LOOPBACK_MAX_BYTES" envDefault:"8388608"`
	MaxImages          int      `env:"IMAGE_LOOPBACK_MAX_IMAGES" envDefault:"2"`
	AutoFollowupPrompt string   `env:"IMAGE_LOOPBACK_AUTO_PROMPT"`
	AllowURLFetch      bool     `env:"IMAGE_LOOPBACK_ALLOW_URL_FETCH" envDefault:"false"`
	LogLevel           string   `env:"IMAGE_LOOPBACK_LOG_LEVEL" envDefault:"warn"`
}

// Default returns the built-in policy: disabled, generate_image only,
// png/jpeg/webp, 8 MiB per image, at most two images, no URL fetching.
func Default() Config {
	return Config{
		Enabled:            false,
		AllowedTools:       []string{"generate_image"},
		AllowedMimeTypes:   []string{"image/png", "image/jpeg", "image/webp"},
		MaxBytes:           8 * 1024 * 1024,
		MaxImages:          2,
		AutoFollowupPrompt: DefaultFollowupPrompt,
		AllowURLFetch:      false,
		LogLevel:           "warn",
	}
}

// FromEnv loads the policy from IMAGE_LOOPBACK_* environment variables,
// falling back to defaults for anything unset.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing loopback environment: %w", err)
	}
	cfg.AllowedTools = trimList(cfg.AllowedTools)
	cfg.AllowedMimeTypes = trimList(cfg.AllowedMimeTypes)
	if cfg.AutoFollowupPrompt == "" {
		cfg.AutoFollowupPrompt = DefaultFollowupPrompt
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c Config) Validate() error {
	if c.MaxBytes <= 0 {
		return fmt.Errorf("max_bytes must be positive, got %d", c.MaxBytes)
	}
	if c.MaxImages <= 0 {
		return fmt.Errorf("max_images must be positive, got %d", c.MaxImages)
	}
	return nil
}

// ToolAllowed reports whether the named tool is on the allowlist.
func (c Config) ToolAllowed(tool string) bool {
	return slices.Contains(c.AllowedTools, tool)
}

// MimeAllowed reports whether the declared mime type is on the allowlist.
func (c Config) MimeAllowed(mimeType string) bool {
	return slices.Contains(c.AllowedMimeTypes, mimeType)
}

func trimList(items []string) []string {
	trimmed := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			trimmed = append(trimmed, item)
		}
	}
	return trimmed
}
