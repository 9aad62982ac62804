package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ferrix/tagscan/internal/cache"
	"github.com/ferrix/tagscan/internal/extract"
	"github.com/ferrix/tagscan/internal/scanner"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Scan    ScanConfig        `yaml:"scan"`
	Watch   WatchConfig       `yaml:"watch"`
	History HistoryConfig     `yaml:"history"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ScanConfig holds the scan root and the extraction/exclusion settings.
// Empty Tags, ExcludeDirs or ExcludePatterns fall back to built-in defaults
// at construction time, not here, so the YAML stays minimal.
type ScanConfig struct {
	Root            string   `yaml:"root"`
	Tags            []string `yaml:"tags"`
	ExcludeDirs     []string `yaml:"exclude_dirs"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	Cache           bool     `yaml:"cache"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	); err != nil {
		return err
	}
	// Compile eagerly so a bad pattern fails at startup rather than mid-scan.
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Pattern(); err != nil {
		return err
	}
	return nil
}

// Pattern compiles the tag vocabulary into an extraction pattern.
func (c *ScanConfig) Pattern() (*extract.Pattern, error) {
	return extract.NewPattern(c.EffectiveTags())
}

// Policy compiles the exclusion settings into a scan policy.
func (c *ScanConfig) Policy() (*scanner.Policy, error) {
	return scanner.NewPolicy(c.EffectiveExcludeDirs(), c.ExcludePatterns)
}

// Hash returns the cache-invalidation hash of the scan-relevant settings.
func (c *ScanConfig) Hash() string {
	return cache.HashConfig(c.EffectiveTags(), c.EffectiveExcludeDirs(), c.ExcludePatterns)
}

// EffectiveTags returns the configured tags, or the default vocabulary.
func (c *ScanConfig) EffectiveTags() []string {
	if len(c.Tags) == 0 {
		return extract.DefaultTags
	}
	return c.Tags
}

// EffectiveExcludeDirs returns the configured directory exclusions, or the
// default set.
func (c *ScanConfig) EffectiveExcludeDirs() []string {
	if len(c.ExcludeDirs) == 0 {
		return scanner.DefaultExcludeDirs
	}
	return c.ExcludeDirs
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
	MaxTotal   int `yaml:"max_total"`
}

// Debounce returns the quiet period applied to filesystem events.
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceMS, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxTotal, validation.Min(0)),
	)
}

// HistoryConfig holds the scan-history database path. An empty path disables
// history recording.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Scan: ScanConfig{
			Root:  ".",
			Cache: true,
		},
		Watch: WatchConfig{
			DebounceMS: 250,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
