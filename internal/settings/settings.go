// Package settings loads apivault settings and the local session file.
//
// Settings live in a YAML file validated against an embedded JSON schema.
// Absent keys take their defaults and a missing file means all defaults.
// A Store keeps the last good Settings and can watch the file, notifying
// subscribers after each successful reload.
package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	apierrors "github.com/systmms/apivault/internal/errors"
)

//go:embed schema.json
var schemaJSON []byte

const (
	// DefaultCacheDurationMinutes is how long secrets are cached unless configured
	DefaultCacheDurationMinutes = 30
	// DefaultBackendURL is where the development backend listens
	DefaultBackendURL = "http://localhost:8787"

	settingsFileName = "settings.yaml"
	sessionFileName  = "session.yaml"
)

// Settings are the user preferences apivault reads
type Settings struct {
	// VaultSecretCacheDuration is in minutes; 0 disables caching
	VaultSecretCacheDuration      float64 `yaml:"vaultSecretCacheDuration" json:"vaultSecretCacheDuration"`
	SaveVaultKeyToOSSecretManager bool    `yaml:"saveVaultKeyToOSSecretManager" json:"saveVaultKeyToOSSecretManager"`
	BackendURL                    string  `yaml:"backendURL" json:"backendURL"`
	LogLevel                      string  `yaml:"logLevel" json:"logLevel"`
}

// Defaults returns the settings used for absent keys
func Defaults() Settings {
	return Settings{
		VaultSecretCacheDuration:      DefaultCacheDurationMinutes,
		SaveVaultKeyToOSSecretManager: false,
		BackendURL:                    DefaultBackendURL,
		LogLevel:                      "info",
	}
}

// Fixed is a settings source that never changes
type Fixed Settings

// Current returns the fixed settings
func (f Fixed) Current() Settings {
	return Settings(f)
}

// DefaultDir returns the per-user apivault directory
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "apivault"), nil
}

// DefaultPath returns the default settings file path
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFileName), nil
}

// DefaultSessionPath returns the default session file path
func DefaultSessionPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionFileName), nil
}

// Load reads and validates the settings file at path. A missing file yields
// Defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Settings{}, apierrors.UserError{
			Message:    "Failed to read settings file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}
	return Parse(data)
}

// Parse validates and decodes settings YAML
func Parse(data []byte) (Settings, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, apierrors.ConfigError{
			Message:    "invalid YAML syntax in settings file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	if err := validate(raw); err != nil {
		return Settings{}, err
	}

	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// Validate checks s against the settings schema
func Validate(s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings for validation: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to marshal settings for validation: %w", err)
	}
	return validate(raw)
}

func validate(raw map[string]interface{}) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal settings for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var field string
		var messages []string
		for _, desc := range result.Errors() {
			if field == "" {
				field = desc.Field()
			}
			messages = append(messages, desc.String())
		}
		return apierrors.ConfigError{
			Field:      field,
			Message:    strings.Join(messages, "; "),
			Suggestion: "See the settings reference for allowed keys and values",
		}
	}
	return nil
}

// Save writes s to path as YAML after validating it
func Save(path string, s Settings) error {
	if err := Validate(s); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeFileAtomic(path, data, 0o644)
}

// writeFileAtomic writes through a temp file in the same directory
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
