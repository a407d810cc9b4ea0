// Package config loads signpad's YAML configuration.
//
// Keys may be written with dashes or underscores:
//
//	editor:
//	  scale-factor: 1.0
//	  scale-mode: stretch
//	overlay:
//	  default-x: 100
//	logging:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/interaction"
	"github.com/georgepadayatti/signpad/overlay"
	"github.com/georgepadayatti/signpad/session"
	"github.com/georgepadayatti/signpad/stamp"
	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigurationError = errors.New("configuration error")
	ErrUnexpectedField    = errors.New("unexpected field in configuration")
	ErrInvalidConfigType  = errors.New("configuration must be a dictionary")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfigurationError
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// EditorConfig configures how signatures are embedded.
type EditorConfig struct {
	// ScaleFactor multiplies the placed size. 1 places the signature
	// exactly where it was shown.
	ScaleFactor float64 `yaml:"scale-factor" json:"scale_factor,omitempty"`

	// ScaleMode is stretch, fit, fill or none.
	ScaleMode string `yaml:"scale-mode" json:"scale_mode,omitempty"`

	// ValidateOutput runs pdfcpu validation over every signed document.
	ValidateOutput bool `yaml:"validate" json:"validate"`

	// MaxImageWidth and MaxImageHeight downscale larger signatures before
	// embedding. Zero means no limit.
	MaxImageWidth  int `yaml:"max-image-width" json:"max_image_width,omitempty"`
	MaxImageHeight int `yaml:"max-image-height" json:"max_image_height,omitempty"`
}

// SetDefaults sets default values for the editor configuration.
func (c *EditorConfig) SetDefaults() {
	if c.ScaleFactor == 0 {
		c.ScaleFactor = 1.0
	}
	if c.ScaleMode == "" {
		c.ScaleMode = stamp.ImageScaleStretch.String()
	}
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	if !(c.ScaleFactor > 0) || math.IsInf(c.ScaleFactor, 0) {
		return NewConfigError("editor.scale-factor", fmt.Sprintf("must be a positive number, got %v", c.ScaleFactor))
	}
	if _, err := stamp.ParseImageScaleMode(c.ScaleMode); err != nil {
		return &ConfigError{Field: "editor.scale-mode", Message: err.Error(), Err: err}
	}
	if c.MaxImageWidth < 0 || c.MaxImageHeight < 0 {
		return NewConfigError("editor.max-image-width", "image limits must not be negative")
	}
	return nil
}

// OverlayConfig configures the on-screen signature overlay.
type OverlayConfig struct {
	// DefaultX and DefaultY place a new capture, in pixels from the
	// container's top-left corner.
	DefaultX float64 `yaml:"default-x" json:"default_x"`
	DefaultY float64 `yaml:"default-y" json:"default_y"`

	// DefaultWidth and DefaultHeight size a new capture. Zero uses half
	// the captured image's natural size.
	DefaultWidth  float64 `yaml:"default-width" json:"default_width,omitempty"`
	DefaultHeight float64 `yaml:"default-height" json:"default_height,omitempty"`

	// MinSize is the smallest width or height a resize may produce.
	MinSize float64 `yaml:"min-size" json:"min_size,omitempty"`

	// HandleSize is the side of each corner resize handle.
	HandleSize float64 `yaml:"handle-size" json:"handle_size,omitempty"`
}

// SetDefaults sets default values for the overlay configuration.
func (c *OverlayConfig) SetDefaults() {
	if c.MinSize == 0 {
		c.MinSize = geometry.DefaultMinSize
	}
	if c.HandleSize == 0 {
		c.HandleSize = interaction.DefaultHandleSize
	}
}

// Validate validates the overlay configuration.
func (c *OverlayConfig) Validate() error {
	if c.DefaultWidth < 0 || c.DefaultHeight < 0 {
		return NewConfigError("overlay.default-width", "default size must not be negative")
	}
	if c.MinSize < 1 {
		return NewConfigError("overlay.min-size", fmt.Sprintf("must be at least 1, got %v", c.MinSize))
	}
	if c.HandleSize <= 0 {
		return NewConfigError("overlay.handle-size", "must be positive")
	}
	return nil
}

// SessionConfig configures document sessions.
type SessionConfig struct {
	// DownloadSuffix is appended to the uploaded file's base name.
	DownloadSuffix string `yaml:"download-suffix" json:"download_suffix,omitempty"`

	// ClampPageIndex commits to the last page when the viewer reports a
	// page past the end. Defaults to true.
	ClampPageIndex *bool `yaml:"clamp-page-index" json:"clamp_page_index,omitempty"`
}

// SetDefaults sets default values for the session configuration.
func (c *SessionConfig) SetDefaults() {
	if c.DownloadSuffix == "" {
		c.DownloadSuffix = "_signed"
	}
	if c.ClampPageIndex == nil {
		clamp := true
		c.ClampPageIndex = &clamp
	}
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	if strings.ContainsAny(c.DownloadSuffix, `/\`) {
		return NewConfigError("session.download-suffix", "must not contain path separators")
	}
	return nil
}

// Config is the complete application configuration.
type Config struct {
	Editor  EditorConfig  `yaml:"editor" json:"editor"`
	Overlay OverlayConfig `yaml:"overlay" json:"overlay"`
	Session SessionConfig `yaml:"session" json:"session"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	c := &Config{Overlay: OverlayConfig{DefaultX: 100, DefaultY: 100}}
	c.SetDefaults()
	return c
}

// SetDefaults sets defaults in every section.
func (c *Config) SetDefaults() {
	c.Editor.SetDefaults()
	c.Overlay.SetDefaults()
	c.Session.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{&c.Editor, &c.Overlay, &c.Session, &c.Logging} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EditorOptions converts the editor section into stamp options.
func (c *Config) EditorOptions() ([]stamp.EditorOption, error) {
	mode, err := stamp.ParseImageScaleMode(c.Editor.ScaleMode)
	if err != nil {
		return nil, &ConfigError{Field: "editor.scale-mode", Message: err.Error(), Err: err}
	}
	return []stamp.EditorOption{
		stamp.WithScaleFactor(c.Editor.ScaleFactor),
		stamp.WithScaleMode(mode),
		stamp.WithValidation(c.Editor.ValidateOutput),
		stamp.WithMaxImageSize(c.Editor.MaxImageWidth, c.Editor.MaxImageHeight),
	}, nil
}

// SessionConfig converts the overlay and session sections into a session
// configuration.
func (c *Config) SessionConfig() session.Config {
	clamp := c.Session.ClampPageIndex == nil || *c.Session.ClampPageIndex
	return session.Config{
		DefaultPosition: geometry.Point{X: c.Overlay.DefaultX, Y: c.Overlay.DefaultY},
		DefaultSize:     overlay.Size{Width: c.Overlay.DefaultWidth, Height: c.Overlay.DefaultHeight},
		MinSize:         c.Overlay.MinSize,
		HandleSize:      c.Overlay.HandleSize,
		DownloadSuffix:  c.Session.DownloadSuffix,
		ClampPageIndex:  clamp,
	}
}

// sectionKeys lists the keys each section accepts.
var sectionKeys = map[string][]string{
	"editor":  {"scale-factor", "scale-mode", "validate", "max-image-width", "max-image-height"},
	"overlay": {"default-x", "default-y", "default-width", "default-height", "min-size", "handle-size"},
	"session": {"download-suffix", "clamp-page-index"},
	"logging": {"level", "format", "output"},
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses, defaults and validates configuration from YAML data.
// An empty document yields the defaults.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return LoadConfigFromMap(raw)
}

// LoadConfigFromMap loads configuration from a map, checking for unknown
// keys in every section.
func LoadConfigFromMap(data map[string]any) (*Config, error) {
	normalized, err := normalizeSections(data)
	if err != nil {
		return nil, err
	}

	// Marshal to YAML then unmarshal to struct
	yamlData, err := yaml.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config map: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(yamlData, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func normalizeSections(data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[normalizeKey(key)] = value
	}
	if err := CheckConfigKeys("signpad", sortedKeys(sectionKeys), sortedKeys(out)); err != nil {
		return nil, err
	}

	for name, value := range out {
		if value == nil {
			delete(out, name)
			continue
		}
		section, ok := value.(map[string]any)
		if !ok {
			return nil, &ConfigError{Field: name, Message: fmt.Sprintf("got %T", value), Err: ErrInvalidConfigType}
		}
		normalizedSection := make(map[string]any, len(section))
		for key, v := range section {
			normalizedSection[normalizeKey(key)] = v
		}
		if err := CheckConfigKeys(name, sectionKeys[name], sortedKeys(normalizedSection)); err != nil {
			return nil, err
		}
		out[name] = normalizedSection
	}
	return out, nil
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		// Normalize to use dashes
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		if !expectedSet[normalizeKey(k)] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey normalizes a configuration key (underscores to dashes).
func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
