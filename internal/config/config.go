package config

import (
	"fmt"

	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/logging"
	"github.com/systmms/apivault/internal/settings"
)

// Config holds the runtime configuration shared by every command
type Config struct {
	// SettingsPath is the settings file; empty means settings.DefaultPath
	SettingsPath string
	// SessionPath is the session file; empty means settings.DefaultSessionPath
	SessionPath string
	// BackendURL overrides the backendURL setting when set
	BackendURL     string
	Logger         *logging.Logger
	NonInteractive bool

	store *settings.Store
}

// Load resolves default paths and reads the settings file. It is safe to
// call more than once; later calls are no-ops.
func (c *Config) Load() error {
	if c.store != nil {
		return nil
	}
	if c.Logger == nil {
		c.Logger = logging.New(false, true)
	}

	if c.SettingsPath == "" {
		path, err := settings.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to resolve settings path: %w", err)
		}
		c.SettingsPath = path
	}
	if c.SessionPath == "" {
		path, err := settings.DefaultSessionPath()
		if err != nil {
			return fmt.Errorf("failed to resolve session path: %w", err)
		}
		c.SessionPath = path
	}

	store, err := settings.NewStore(c.SettingsPath, settings.WithLogger(c.Logger.With("settings")))
	if err != nil {
		return apierrors.SimplifyError(err)
	}
	c.store = store
	return nil
}

// Store returns the settings store. Load must have succeeded.
func (c *Config) Store() *settings.Store {
	return c.store
}

// Current returns the current settings, or the defaults before Load
func (c *Config) Current() settings.Settings {
	if c.store == nil {
		return settings.Defaults()
	}
	return c.store.Current()
}

// Backend returns the vault backend base URL
func (c *Config) Backend() string {
	if c.BackendURL != "" {
		return c.BackendURL
	}
	return c.Current().BackendURL
}

// SessionFile returns the session file handle
func (c *Config) SessionFile() *settings.SessionFile {
	return settings.NewSessionFile(c.SessionPath)
}
