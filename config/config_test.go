package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/overlay"
	"github.com/georgepadayatti/signpad/session"
	"github.com/google/go-cmp/cmp"
)

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("field", "message")
	if err.Field != "field" {
		t.Errorf("Expected field 'field', got '%s'", err.Field)
	}
	if err.Message != "message" {
		t.Errorf("Expected message 'message', got '%s'", err.Message)
	}

	expected := "config error in 'field': message"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
	if !errors.Is(err, ErrConfigurationError) {
		t.Error("Expected ConfigError to match ErrConfigurationError")
	}
}

func TestConfigErrorWithoutField(t *testing.T) {
	err := NewConfigError("", "general error")
	expected := "config error: general error"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"key_name", "key-name"},
		{"key-name", "key-name"},
		{"key_name_long", "key-name-long"},
		{"keyname", "keyname"},
	}

	for _, tt := range tests {
		result := normalizeKey(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeKey(%s) = %s, want %s", tt.input, result, tt.expected)
		}
	}
}

func TestCheckConfigKeys(t *testing.T) {
	expected := []string{"scale-factor", "scale-mode", "validate"}

	// Valid keys
	err := CheckConfigKeys("editor", expected, []string{"scale-factor", "validate"})
	if err != nil {
		t.Errorf("CheckConfigKeys should not error for valid keys: %v", err)
	}

	// Unexpected key
	err = CheckConfigKeys("editor", expected, []string{"scale-factor", "unknown-key"})
	if !errors.Is(err, ErrUnexpectedField) {
		t.Errorf("CheckConfigKeys should error for unexpected keys, got %v", err)
	}

	// Works with underscores
	err = CheckConfigKeys("editor", expected, []string{"scale_mode"})
	if err != nil {
		t.Errorf("CheckConfigKeys should accept underscores: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}

	want := session.Config{
		DefaultPosition: geometry.Point{X: 100, Y: 100},
		MinSize:         1,
		HandleSize:      10,
		DownloadSuffix:  "_signed",
		ClampPageIndex:  true,
	}
	if diff := cmp.Diff(want, config.SessionConfig()); diff != "" {
		t.Errorf("SessionConfig mismatch (-want +got):\n%s", diff)
	}

	opts, err := config.EditorOptions()
	if err != nil {
		t.Fatalf("EditorOptions failed: %v", err)
	}
	if len(opts) != 4 {
		t.Errorf("Expected 4 editor options, got %d", len(opts))
	}
}

func TestLoggingConfigSetDefaults(t *testing.T) {
	config := &LoggingConfig{}
	config.SetDefaults()

	if config.Level != "info" {
		t.Errorf("Expected level 'info', got '%s'", config.Level)
	}
	if config.Format != "text" {
		t.Errorf("Expected format 'text', got '%s'", config.Format)
	}
	if config.Output != "stderr" {
		t.Errorf("Expected output 'stderr', got '%s'", config.Output)
	}

	// Values should not be overwritten
	config2 := &LoggingConfig{Level: "debug", Format: "json", Output: "stdout"}
	config2.SetDefaults()
	if config2.Level != "debug" {
		t.Error("SetDefaults should not overwrite existing values")
	}
}

func TestParseConfig(t *testing.T) {
	yamlData := []byte(`
editor:
  scale-factor: 0.5
  scale_mode: fit
  validate: true
  max-image-width: 800
overlay:
  default-x: 0
  default-width: 120
  default-height: 40
session:
  download-suffix: -final
  clamp-page-index: false
logging:
  level: debug
  format: json
`)

	config, err := ParseConfig(yamlData)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if config.Editor.ScaleFactor != 0.5 || config.Editor.ScaleMode != "fit" || !config.Editor.ValidateOutput {
		t.Errorf("Unexpected editor config %+v", config.Editor)
	}
	if config.Editor.MaxImageWidth != 800 || config.Editor.MaxImageHeight != 0 {
		t.Errorf("Unexpected image limits %+v", config.Editor)
	}
	if config.Logging.Level != "debug" || config.Logging.Output != "stderr" {
		t.Errorf("Unexpected logging config %+v", config.Logging)
	}

	want := session.Config{
		DefaultPosition: geometry.Point{X: 0, Y: 100},
		DefaultSize:     overlay.Size{Width: 120, Height: 40},
		MinSize:         1,
		HandleSize:      10,
		DownloadSuffix:  "-final",
		ClampPageIndex:  false,
	}
	if diff := cmp.Diff(want, config.SessionConfig()); diff != "" {
		t.Errorf("SessionConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	config, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), config); diff != "" {
		t.Errorf("Empty config should equal defaults (-want +got):\n%s", diff)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		field   string
	}{
		{"malformed", "editor: [", nil, ""},
		{"unknown section", "signing:\n  key: x\n", ErrUnexpectedField, ""},
		{"unknown key", "editor:\n  scale: 2\n", ErrUnexpectedField, ""},
		{"section not a map", "editor: 3\n", ErrInvalidConfigType, "editor"},
		{"negative scale", "editor:\n  scale-factor: -1\n", ErrConfigurationError, "editor.scale-factor"},
		{"bad scale mode", "editor:\n  scale-mode: crop\n", nil, "editor.scale-mode"},
		{"tiny min size", "overlay:\n  min-size: 0.5\n", ErrConfigurationError, "overlay.min-size"},
		{"negative size", "overlay:\n  default-width: -3\n", ErrConfigurationError, "overlay.default-width"},
		{"path in suffix", "session:\n  download-suffix: a/b\n", ErrConfigurationError, "session.download-suffix"},
		{"bad level", "logging:\n  level: loud\n", nil, "logging.level"},
		{"bad format", "logging:\n  format: xml\n", ErrConfigurationError, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.field != "" {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
					t.Errorf("Expected ConfigError for %q, got %v", tt.field, err)
				}
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "signpad.yaml")

	yamlData := []byte(`
overlay:
  handle-size: 16
`)

	if err := os.WriteFile(configFile, yamlData, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Overlay.HandleSize != 16 {
		t.Errorf("Expected handle-size 16, got %v", config.Overlay.HandleSize)
	}
	if config.Editor.ScaleFactor != 1 {
		t.Errorf("Expected default scale-factor 1, got %v", config.Editor.ScaleFactor)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("LoadConfig should error for non-existent file")
	}
}

func TestLoadConfigFromMap(t *testing.T) {
	config, err := LoadConfigFromMap(map[string]any{
		"session": map[string]any{"download_suffix": "_ok"},
		"logging": nil,
	})
	if err != nil {
		t.Fatalf("LoadConfigFromMap failed: %v", err)
	}
	if config.Session.DownloadSuffix != "_ok" {
		t.Errorf("Expected suffix '_ok', got '%s'", config.Session.DownloadSuffix)
	}
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "signpad.log")
	logger, closeLog, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: logFile})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "page", 2)
	if err := closeLog(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"page":2`) {
		t.Errorf("Unexpected log output: %s", out)
	}

	if _, _, err := NewLogger(LoggingConfig{Level: "chatty"}); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, closeLog, err := NewLogger(LoggingConfig{}); err != nil {
		t.Errorf("Defaults should build a logger: %v", err)
	} else if err := closeLog(); err != nil {
		t.Errorf("close of stderr logger failed: %v", err)
	}
}
